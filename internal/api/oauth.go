package api

import (
	"net/http"
	"strconv"
)

// Cookie names read by the frontend before it opens a sync session.
const (
	CookieAccessToken  = "segmentor-access-token"
	CookieRefreshToken = "segmentor-refresh-token"
	CookieExpiresAt    = "segmentor-expires-at"
	CookieUserID       = "segmentor-user-id"
	CookieName         = "segmentor-name"
)

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	state, err := h.states.Issue()
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to issue oauth state")
		writeError(w, http.StatusInternalServerError, "server_error", "failed to start login")
		return
	}
	http.Redirect(w, r, h.exchanger.AuthCodeURL(state), http.StatusFound)
}

// callback completes the authorization-code exchange and hands the tokens to the frontend as cookies.
func (h *Handler) callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if reason := query.Get("error"); reason != "" {
		writeError(w, http.StatusForbidden, "access_denied", reason)
		return
	}

	if err := h.states.Verify(query.Get("state")); err != nil {
		h.logger.Warn().Err(err).Msg("rejected oauth callback")
		writeError(w, http.StatusBadRequest, "invalid_state", "login expired or was not started here")
		return
	}

	code := query.Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "missing code parameter")
		return
	}

	grant, err := h.exchanger.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to exchange authorization code")
		writeError(w, http.StatusBadGateway, "exchange_failed", "failed to obtain strava token")
		return
	}

	h.logger.Info().
		Int64("athlete_id", grant.AthleteID).
		Str("scope", query.Get("scope")).
		Msg("strava authorization completed")

	h.setCookie(w, CookieAccessToken, grant.AccessToken)
	h.setCookie(w, CookieRefreshToken, grant.RefreshToken)
	h.setCookie(w, CookieExpiresAt, strconv.FormatUint(grant.ExpiresAt, 10))
	h.setCookie(w, CookieUserID, strconv.FormatInt(grant.AthleteID, 10))
	h.setCookie(w, CookieName, grant.AthleteName)

	http.Redirect(w, r, "/", http.StatusFound)
}

// setCookie writes a cookie readable by frontend scripts, which relay the values over /sync.
func (h *Handler) setCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Secure:   h.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
