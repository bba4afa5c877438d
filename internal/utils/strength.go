package utils

// Password strength levels returned by EvaluatePasswordStrength.
const (
	StrengthNone     = "None"
	StrengthVeryWeak = "Very Weak"
	StrengthWeak     = "Weak"
	StrengthGood     = "Good"
	StrengthStrong   = "Strong"
)

// MinPasswordLength is the shortest password accepted for an account.
const MinPasswordLength = 8

// PasswordStrength is a score and its level.
type PasswordStrength struct {
	Score float64 `json:"score"`
	Level string  `json:"level"`
}

// EvaluatePasswordStrength scores a password. Every occurrence of a
// character adds 5/n points where n is how many times it has been seen so
// far, and each extra character class (digit, lower, upper, symbol) adds 10.
func EvaluatePasswordStrength(password string) PasswordStrength {
	if password == "" {
		return PasswordStrength{Level: StrengthNone}
	}

	var score float64
	seen := map[rune]int{}
	var digits, lower, upper, other bool
	for _, r := range password {
		seen[r]++
		score += 5.0 / float64(seen[r])

		switch {
		case r >= '0' && r <= '9':
			digits = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r != '_':
			other = true
		}
	}

	variations := 0
	for _, v := range []bool{digits, lower, upper, other} {
		if v {
			variations++
		}
	}
	score += float64(variations-1) * 10

	switch {
	case score > 80:
		return PasswordStrength{Score: score, Level: StrengthStrong}
	case score > 60:
		return PasswordStrength{Score: score, Level: StrengthGood}
	case score >= 30:
		return PasswordStrength{Score: score, Level: StrengthWeak}
	}
	return PasswordStrength{Score: score, Level: StrengthVeryWeak}
}

// IsWeakPassword reports whether password is too short or scores below
// Weak.
func IsWeakPassword(password string) bool {
	if len([]rune(password)) < MinPasswordLength {
		return true
	}
	switch EvaluatePasswordStrength(password).Level {
	case StrengthNone, StrengthVeryWeak:
		return true
	}
	return false
}
