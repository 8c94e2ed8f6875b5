package auth

import "strings"

// CheckPassword 检查站点密码。
// 未配置密码时总是通过；否则要求与整个配置值完全一致，或逐字节等于逗号分隔列表中的某一项。
// 列表项不去除空白，空项不能匹配。
func CheckPassword(configured, supplied string) bool {
	if configured == "" {
		return true
	}
	if supplied == configured {
		return true
	}
	for _, p := range strings.Split(configured, ",") {
		if p != "" && p == supplied {
			return true
		}
	}
	return false
}
