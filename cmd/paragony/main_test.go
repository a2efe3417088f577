package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codemarcinu/OCR/internal/config"
	"github.com/codemarcinu/OCR/internal/pipeline"
)

const modelReply = `{"sklep":{"nazwa":"Lidl","adres_sklepu":"ul. Testowa 1","nip":"1234567890"},
"data":"2024-03-15","godzina":"14:30",
"produkty":[{"nazwa":"Mleko 3,2% 1l","ilosc":"1","suma":"3,99","jednostka":"szt","stawka_vat":"C"}],
"platnosc":{"suma":"3,99","metoda":"karta"}}`

// setupEnv points config at a temp home and a fake chat endpoint. Tests
// using it call t.Setenv and so cannot run in parallel.
func setupEnv(t *testing.T, reply string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": reply},
			}},
		})
	}))
	t.Cleanup(srv.Close)

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("PARAGONY_CONFIG", "")
	t.Setenv("PARAGONY_DATABASE_PATH", filepath.Join(home, "paragony.db"))
	t.Setenv("PARAGONY_LLM_BASE_URL", srv.URL+"/v1")
	t.Setenv("PARAGONY_LLM_TIMEOUT", "5s")
	t.Setenv("PARAGONY_PIPELINE_ORACLE", "heuristic")
	t.Setenv("PARAGONY_PIPELINE_RETRY_DELAY", "0s")
	t.Setenv("PARAGONY_PIPELINE_MAX_ATTEMPTS", "2")
	t.Setenv("PARAGONY_LOG_LEVEL", "error")
	t.Setenv("PARAGONY_METRICS_TEXTFILE", filepath.Join(home, "paragony.prom"))
	return home
}

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	var stdout, stderr bytes.Buffer
	code := run(ctx, args, strings.NewReader(stdin), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestProcessShowListReset(t *testing.T) {
	home := setupEnv(t, "```json\n"+modelReply+"\n```")
	path := filepath.Join(home, "paragon.txt")
	require.NoError(t, os.WriteFile(path, []byte("Lidl Polska\nMleko 3,99\nSUMA PLN 3,99\n"), 0o600))

	code, out, stderr := runCLI(t, "", "process", "-json", path)
	require.Equal(t, exitOK, code, stderr)
	t.Log("processed")

	var got []struct {
		ID      string `json:"id"`
		Receipt struct {
			Store struct {
				Name string `json:"name"`
			} `json:"store"`
			Products []struct {
				StandardizedName string `json:"standardized_name"`
				Category         string `json:"category"`
			} `json:"products"`
			Metadata struct {
				DetectedStore string `json:"detected_store"`
			} `json:"metadata"`
		} `json:"receipt"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	require.Equal(t, "Lidl", got[0].Receipt.Store.Name)
	require.Equal(t, "lidl", got[0].Receipt.Metadata.DetectedStore)
	require.Equal(t, "Mleko", got[0].Receipt.Products[0].StandardizedName)
	require.Equal(t, "NABIAŁ", got[0].Receipt.Products[0].Category)

	promPath := filepath.Join(home, "paragony.prom")
	prom, err := os.ReadFile(promPath)
	require.NoError(t, err)
	require.Contains(t, string(prom), `paragony_receipts_processed_total{outcome="ok"} 1`)

	code, out, _ = runCLI(t, "", "show", got[0].ID)
	require.Equal(t, exitOK, code)
	require.Contains(t, out, "Lidl")
	require.Contains(t, out, "3.99")

	after, err := os.ReadFile(promPath)
	require.NoError(t, err)
	require.Equal(t, string(prom), string(after), "show leaves the textfile alone")

	code, out, _ = runCLI(t, "", "process", path)
	require.Equal(t, exitOK, code)
	require.Contains(t, out, "1 already imported")

	code, out, _ = runCLI(t, "", "list")
	require.Equal(t, exitOK, code)
	require.Contains(t, out, got[0].ID)

	code, _, _ = runCLI(t, "", "reset")
	require.Equal(t, exitUsage, code)
	code, _, _ = runCLI(t, "", "reset", "-yes")
	require.Equal(t, exitOK, code)
	code, _, _ = runCLI(t, "", "show", got[0].ID)
	require.Equal(t, exitNotFound, code)
}

func TestProcessExitCodes(t *testing.T) {
	home := setupEnv(t, "Nie potrafię odczytać paragonu.")

	code, _, stderr := runCLI(t, "", "process", filepath.Join(home, "brak.jpg"))
	require.Equal(t, exitNotFound, code)
	require.Contains(t, stderr, "brak.jpg")

	img := filepath.Join(home, "skan.jpg")
	require.NoError(t, os.WriteFile(img, []byte{0xff, 0xd8}, 0o600))
	code, _, _ = runCLI(t, "", "process", img)
	require.Equal(t, exitOCR, code, "no transcription next to the image")

	txt := filepath.Join(home, "paragon.txt")
	require.NoError(t, os.WriteFile(txt, []byte("Biedronka\nChleb 4,50"), 0o600))
	code, _, _ = runCLI(t, "", "process", txt)
	require.Equal(t, exitModel, code)
}

func TestRepairCommand(t *testing.T) {
	home := setupEnv(t, "")
	resp := filepath.Join(home, "odpowiedz.txt")
	raw := strings.Replace(modelReply, `"nazwa":"Lidl"`, `"nazwa":""`, 1)
	require.NoError(t, os.WriteFile(resp, []byte(raw), 0o600))

	code, out, stderr := runCLI(t, "", "repair", "-store", "lidl", resp)
	require.Equal(t, exitOK, code, stderr)
	require.Contains(t, out, `"name": "LIDL"`)
	require.Contains(t, out, `"total_price": 3.99`)

	bad := filepath.Join(home, "zla.txt")
	require.NoError(t, os.WriteFile(bad, []byte("brak json"), 0o600))
	code, _, _ = runCLI(t, "", "repair", bad)
	require.Equal(t, exitModel, code)

	code, _, _ = runCLI(t, "", "repair", "-store", "zabka", resp)
	require.Equal(t, exitUsage, code)
}

func TestKeyCommand(t *testing.T) {
	setupEnv(t, "")
	t.Setenv("OPENAI_API_KEY", "")
	code, _, _ := runCLI(t, "sk-abc\n", "key", "set", "openai")
	require.Equal(t, exitOK, code)
	require.Equal(t, "sk-abc", resolveAPIKey(config.Config{LLM: config.LLMConfig{Provider: "openai"}}))

	code, _, _ = runCLI(t, "", "key", "delete", "openai")
	require.Equal(t, exitOK, code)
	code, _, _ = runCLI(t, "", "key", "rotate", "openai")
	require.Equal(t, exitUsage, code)
}

func TestUsage(t *testing.T) {
	code, _, stderr := runCLI(t, "")
	require.Equal(t, exitUsage, code)
	require.Contains(t, stderr, "usage: paragony")
}

func TestExitCode(t *testing.T) {
	t.Parallel()
	require.Equal(t, exitOK, exitCode(nil))
	require.Equal(t, exitNotFound, exitCode(os.ErrNotExist))
	require.Equal(t, exitOCR, exitCode(&pipeline.FailedError{Stage: pipeline.StageOCR, Cause: os.ErrNotExist}))
	require.Equal(t, exitModel, exitCode(&pipeline.FailedError{Stage: pipeline.StageModel}))
	require.Equal(t, exitOther, exitCode(errors.New("disk full")))
}
