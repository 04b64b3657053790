package auth

import (
	"errors"
	"strings"
	"unicode"
)

var errMalformedBearer = errors.New("无效的令牌格式")

// ParseBearerToken 严格解析 Authorization 头。
// 合法格式为 "Bearer" 后跟至少一个空白字符和令牌本体，
// 令牌内部不允许出现空白字符。
func ParseBearerToken(header string) (string, error) {
	const scheme = "Bearer"

	if !strings.HasPrefix(header, scheme) {
		return "", errMalformedBearer
	}

	rest := header[len(scheme):]
	if rest == "" || !unicode.IsSpace(rune(rest[0])) {
		return "", errMalformedBearer
	}

	token := strings.TrimLeftFunc(rest, unicode.IsSpace)
	if token == "" {
		return "", errMalformedBearer
	}
	if strings.IndexFunc(token, unicode.IsSpace) >= 0 {
		return "", errMalformedBearer
	}

	return token, nil
}
