package main

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dropDatabas3/farmauth/internal/http/client"
	"github.com/dropDatabas3/farmauth/internal/observability/logger"
	"github.com/dropDatabas3/farmauth/internal/storage"
)

// storedCookie es lo que el jar expone de cada cookie (nombre y valor).
type storedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// loadCookies carga en el jar las cookies que dejó la ejecución anterior.
func loadCookies(ctx context.Context, st storage.Store, key string, hc *client.Client) int {
	raw, err := st.Get(ctx, key)
	if storage.IsNotFound(err) {
		return 0
	}
	log := logger.From(ctx).With(logger.Component("cli"), logger.Op("load_cookies"))
	if err != nil {
		log.Warn("stored cookies unreadable", logger.Err(err))
		return 0
	}
	var saved []storedCookie
	if err := json.Unmarshal([]byte(raw), &saved); err != nil {
		log.Warn("stored cookies discarded", logger.Err(err))
		_ = st.Delete(ctx, key)
		return 0
	}
	cookies := make([]*http.Cookie, 0, len(saved))
	for _, c := range saved {
		if c.Name == "" {
			continue
		}
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
	}
	hc.SetCookies(cookies)
	return len(cookies)
}

// saveCookies guarda las cookies vigentes; un jar vacío borra la clave.
func saveCookies(ctx context.Context, st storage.Store, key string, hc *client.Client) error {
	current := hc.Cookies()
	if len(current) == 0 {
		return st.Delete(ctx, key)
	}
	saved := make([]storedCookie, 0, len(current))
	for _, c := range current {
		saved = append(saved, storedCookie{Name: c.Name, Value: c.Value})
	}
	b, err := json.Marshal(saved)
	if err != nil {
		return err
	}
	return st.Set(ctx, key, string(b), 0)
}
