package api

import (
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/starford/hypermind/internal/models"
	"github.com/starford/hypermind/internal/settings"
	"github.com/starford/hypermind/internal/storage"
)

func settingsRouter(t *testing.T) (http.Handler, *settings.Store, storage.Provider) {
	t.Helper()
	files, err := storage.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defaults := settings.Settings{LLM: models.LLM{Service: "offline"}}
	store := settings.NewStore(files, "settings.yaml", defaults, slog.New(slog.DiscardHandler))
	svc, _ := testEnv(t, envOpts{})
	return NewRouter(svc, RouterConfig{Settings: store}), store, files
}

func TestSettingsGetAndUpdate(t *testing.T) {
	router, store, files := settingsRouter(t)

	var got models.LLM
	decodeEnvelope(t, post(t, router, "/settings/get", "", nil), &got)
	if got.Service != "offline" {
		t.Fatalf("initial = %+v", got)
	}

	var pushed []models.LLM
	store.OnChange(func(s settings.Settings) { pushed = append(pushed, s.LLM) })

	want := models.LLM{Service: "openai", Model: "gpt-4o-mini"}
	w := post(t, router, "/settings/update", "", want)
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body = %s", w.Code, w.Body.String())
	}
	decodeEnvelope(t, w, &got)
	if got != want {
		t.Errorf("updated = %+v", got)
	}
	if len(pushed) != 1 || pushed[0] != want {
		t.Errorf("subscribers saw %+v", pushed)
	}

	data, err := files.Read("settings.yaml")
	if err != nil {
		t.Fatalf("settings file: %v", err)
	}
	if !strings.Contains(string(data), "gpt-4o-mini") {
		t.Errorf("settings file = %q", data)
	}
}

func TestSettingsUpdateRejectsInvalid(t *testing.T) {
	router, store, _ := settingsRouter(t)

	w := post(t, router, "/settings/update", "", models.LLM{Service: "openai"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if env := decodeEnvelope(t, w, nil); env.OK {
		t.Error("envelope reports ok")
	}
	if store.LLM().Service != "offline" {
		t.Errorf("settings changed to %+v", store.LLM())
	}
}
