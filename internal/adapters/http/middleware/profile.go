package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// ProfileCookieName holds the browser profile id that scopes a plan set.
const ProfileCookieName = "vitality_profile"

const profileContextKey contextKey = "profile"

// profileMaxAge keeps the profile for a year.
const profileMaxAge = 365 * 24 * 60 * 60

// Profile ensures every request carries a profile id, issuing a random one
// in a cookie when the browser has none or sent a malformed value.
// POST: ProfileID(r.Context()) is a valid UUID string
func Profile(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(ProfileCookieName); err == nil {
			if parsed, err := uuid.Parse(c.Value); err == nil {
				id = parsed.String()
			}
		}
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     ProfileCookieName,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				Secure:   SecureCookies,
				SameSite: http.SameSiteLaxMode,
				MaxAge:   profileMaxAge,
			})
		}
		next.ServeHTTP(w, r.WithContext(ContextWithProfile(r.Context(), id)))
	})
}

// ProfileID returns the request's profile id, or "" outside Profile.
func ProfileID(ctx context.Context) string {
	id, _ := ctx.Value(profileContextKey).(string)
	return id
}

// ContextWithProfile returns ctx carrying profile id.
func ContextWithProfile(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, profileContextKey, id)
}
