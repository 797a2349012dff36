package browserctx

import (
	"github.com/playwright-community/playwright-go"

	"github.com/zappedin/orchestrator/pkg/models"
)

// toStorageState converts a persisted session state into the shape a new
// browsing context accepts.
func toStorageState(state *models.SessionState) *playwright.OptionalStorageState {
	if state == nil {
		state = models.EmptySessionState()
	}

	cookies := make([]playwright.OptionalCookie, 0, len(state.Cookies))
	for _, c := range state.Cookies {
		cookie := playwright.OptionalCookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   playwright.String(c.Domain),
			Path:     playwright.String(c.Path),
			Expires:  playwright.Float(c.Expires),
			HttpOnly: playwright.Bool(c.HTTPOnly),
			Secure:   playwright.Bool(c.Secure),
			SameSite: sameSiteFromString(c.SameSite),
		}
		cookies = append(cookies, cookie)
	}

	origins := make([]playwright.Origin, 0, len(state.Origins))
	for _, o := range state.Origins {
		entries := make([]playwright.NameValue, 0, len(o.LocalStorage))
		for _, e := range o.LocalStorage {
			entries = append(entries, playwright.NameValue{Name: e.Name, Value: e.Value})
		}
		origins = append(origins, playwright.Origin{Origin: o.Origin, LocalStorage: entries})
	}

	return &playwright.OptionalStorageState{Cookies: cookies, Origins: origins}
}

// fromStorageState converts a live context snapshot back into the persisted
// shape.
func fromStorageState(snapshot *playwright.StorageState) *models.SessionState {
	if snapshot == nil {
		return models.EmptySessionState()
	}

	state := models.EmptySessionState()
	for _, c := range snapshot.Cookies {
		cookie := models.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HttpOnly,
			Secure:   c.Secure,
		}
		if c.SameSite != nil {
			cookie.SameSite = string(*c.SameSite)
		}
		state.Cookies = append(state.Cookies, cookie)
	}

	for _, o := range snapshot.Origins {
		origin := models.Origin{Origin: o.Origin, LocalStorage: []models.LocalStorageEntry{}}
		for _, e := range o.LocalStorage {
			origin.LocalStorage = append(origin.LocalStorage, models.LocalStorageEntry{
				Name:  e.Name,
				Value: e.Value,
			})
		}
		state.Origins = append(state.Origins, origin)
	}

	return state
}

func sameSiteFromString(value string) *playwright.SameSiteAttribute {
	switch value {
	case "Strict":
		return playwright.SameSiteAttributeStrict
	case "Lax":
		return playwright.SameSiteAttributeLax
	case "None":
		return playwright.SameSiteAttributeNone
	default:
		return nil
	}
}
