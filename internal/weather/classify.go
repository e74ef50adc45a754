package weather

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type conditionRule struct {
	key      string
	category IconCategory
}

// conditionRules is matched top to bottom; the first key contained in the
// normalized text wins, so generic keys shadow the more specific ones below them.
var conditionRules = []conditionRule{
	{"ceu limpo", IconSunny},

	{"algumas nuvens", IconPartlySunny},
	{"nuvens dispersas", IconPartlySunny},
	{"nublado", IconCloudy},

	{"chuva leve", IconLightRain},
	{"garoa", IconLightRain},
	{"chuvisco", IconLightRain},
	{"light rain", IconLightRain},
	{"drizzle", IconLightRain},

	{"chuva moderada", IconModerateRain},
	{"chuva", IconModerateRain},
	{"rain", IconModerateRain},
	{"moderate rain", IconModerateRain},

	{"chuva forte", IconHeavyRain},
	{"temporal", IconHeavyRain},
	{"heavy rain", IconHeavyRain},
	{"downpour", IconHeavyRain},
}

// Classify maps a free-text condition to an icon category. Unknown text
// falls back to IconPartlySunny.
func Classify(condition string) IconCategory {
	normalized := NormalizeCondition(condition)
	for _, rule := range conditionRules {
		if strings.Contains(normalized, rule.key) {
			return rule.category
		}
	}
	return IconPartlySunny
}

// NormalizeCondition lowercases s and strips diacritical marks.
func NormalizeCondition(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}
