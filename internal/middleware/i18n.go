package middleware

import (
	"context"
	"net"
	"net/http"
	"strings"

	"golang.org/x/text/language"
)

type languageContextKey struct{}
type countryContextKey struct{}

var (
	LanguageKey = languageContextKey{}
	CountryKey  = countryContextKey{}
)

// SupportedLanguages are the narrative languages recipe instructions can be
// written for. The first entry is the matcher fallback.
var SupportedLanguages = []language.Tag{
	language.SimplifiedChinese,
	language.English,
	language.Japanese,
	language.Korean,
	language.Indonesian,
	language.TraditionalChinese,
}

var matcher = language.NewMatcher(SupportedLanguages)

var countryLanguages = map[string]language.Tag{
	"CN": language.SimplifiedChinese,
	"SG": language.SimplifiedChinese,
	"TW": language.TraditionalChinese,
	"HK": language.TraditionalChinese,
	"MO": language.TraditionalChinese,
	"JP": language.Japanese,
	"KR": language.Korean,
	"ID": language.Indonesian,
}

// CountryLookup resolves ISO country codes for an IP address.
type CountryLookup func(ip string) (string, error)

// I18N stores the narrative language and, when known, the client country on
// the request context.
func I18N(defaultLanguage string, lookup CountryLookup) func(http.Handler) http.Handler {
	fallback := MatchLanguage(defaultLanguage)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			country := ResolveCountry(r, lookup)
			lang := detectLanguage(r, fallback, country)
			ctx := context.WithValue(r.Context(), LanguageKey, lang)
			if country != "" {
				ctx = context.WithValue(ctx, CountryKey, country)
			}
			w.Header().Set("Content-Language", lang.String())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func detectLanguage(r *http.Request, fallback language.Tag, country string) language.Tag {
	for _, key := range []string{"X-Narrative-Language", "X-Locale"} {
		if v := strings.TrimSpace(r.Header.Get(key)); v != "" {
			if tag, err := language.Parse(v); err == nil {
				return match(tag)
			}
		}
	}
	if tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language")); err == nil && len(tags) > 0 {
		if _, _, conf := matcher.Match(tags...); conf != language.No {
			return match(tags...)
		}
	}
	if tag, ok := countryLanguages[strings.ToUpper(country)]; ok {
		return tag
	}
	if country != "" {
		return language.English
	}
	return fallback
}

// MatchLanguage maps a free-form language name onto the closest supported
// narrative language. Unparseable input yields the matcher fallback.
func MatchLanguage(raw string) language.Tag {
	tag, err := language.Parse(strings.TrimSpace(raw))
	if err != nil {
		return SupportedLanguages[0]
	}
	return match(tag)
}

func match(tags ...language.Tag) language.Tag {
	_, idx, _ := matcher.Match(tags...)
	return SupportedLanguages[idx]
}

// ClientIP returns the best-effort client IP address for the request.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		parts := strings.Split(xf, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// LanguageFromContext returns the narrative language chosen for the request.
func LanguageFromContext(ctx context.Context) language.Tag {
	if v, ok := ctx.Value(LanguageKey).(language.Tag); ok {
		return v
	}
	return SupportedLanguages[0]
}

// CountryFromContext returns the ISO country code stored in the request context.
func CountryFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(CountryKey).(string); ok {
		return v
	}
	return ""
}

// ResolveCountry resolves a best-effort ISO country code for the given request.
func ResolveCountry(r *http.Request, lookup CountryLookup) string {
	if r == nil {
		return ""
	}
	headerHints := []string{"X-Country-Code", "X-IP-Country", "CF-IPCountry", "X-Appengine-Country"}
	for _, key := range headerHints {
		if val := strings.TrimSpace(r.Header.Get(key)); val != "" {
			return strings.ToUpper(val)
		}
	}
	if lookup != nil {
		if ip := ClientIP(r); ip != "" {
			if country, err := lookup(ip); err == nil && country != "" {
				return strings.ToUpper(country)
			}
		}
	}
	return ""
}
