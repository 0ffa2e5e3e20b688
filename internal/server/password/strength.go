package password

import (
	"strings"
	"unicode"

	"github.com/dmitrijs2005/medaccount/internal/common"
)

const (
	MinLength = 8

	// similarityThreshold is the longest-common-substring ratio above which a
	// password counts as too close to a user attribute.
	similarityThreshold = 0.7
)

var commonPasswords = map[string]struct{}{}

func init() {
	for _, p := range strings.Fields(`
		password password1 password123 passw0rd 12345678 123456789 1234567890 qwerty123 qwertyuiop
		iloveyou admin123 welcome1 letmein1 sunshine princess football baseball dragon123 monkey123
		abc12345 11111111 00000000 trustno1 superman 1q2w3e4r qazwsx123 changeme healthcare doctor123
		patient1 hospital medicine`) {
		commonPasswords[p] = struct{}{}
	}
}

// ValidateStrength rejects passwords that are short, entirely numeric,
// commonly used, or too similar to one of userAttrs (username, email, names).
// All failures are reported together under the "password" field.
func ValidateStrength(password string, userAttrs ...string) error {
	var problems []string

	if len([]rune(password)) < MinLength {
		problems = append(problems, "must contain at least 8 characters")
	}
	if password != "" && isNumeric(password) {
		problems = append(problems, "must not be entirely numeric")
	}
	if _, ok := commonPasswords[strings.ToLower(password)]; ok {
		problems = append(problems, "is too common")
	}
	for _, attr := range userAttrs {
		if tooSimilar(password, attr) {
			problems = append(problems, "is too similar to your personal information")
			break
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return common.NewValidationError("password", strings.Join(problems, ", "))
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func tooSimilar(password, attr string) bool {
	attr = strings.ToLower(strings.TrimSpace(attr))
	if at := strings.IndexByte(attr, '@'); at > 0 {
		attr = attr[:at]
	}
	if len(attr) < 3 {
		return false
	}

	p := strings.ToLower(password)
	if strings.Contains(p, attr) {
		return true
	}

	lcs := longestCommonSubstring(p, attr)
	return float64(lcs)/float64(max(len(p), len(attr))) >= similarityThreshold
}

func longestCommonSubstring(a, b string) int {
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	best := 0
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > best {
					best = cur[j]
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return best
}
