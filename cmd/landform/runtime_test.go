package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"landform/internal/command"
	"landform/internal/config"
	"landform/internal/form"
	"landform/internal/logging"
	"landform/internal/responseapi/apitest"
)

const testFormTOML = `
projectId = "proj-cli"

[[content.fields]]
ref = "name"
type = "short_text"
title = "Name"
validations = { required = true }

[[content.thankYouScreens]]
ref = "ty"
title = "Thanks!"

[settings]
autosaveProgress = true
duplicatePrevention = "cookie"
`

func writeForm(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "form.toml")
	if err := os.WriteFile(path, []byte(testFormTOML), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOpenBackend_Kinds(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	logger := logging.Discard()

	for _, kind := range []string{config.StorageMemory, config.StorageSQLite, config.StorageBadger} {
		t.Run(kind, func(t *testing.T) {
			cfg := config.Config{
				Storage:    kind,
				SQLitePath: filepath.Join(dir, "lf.db"),
				BadgerDir:  filepath.Join(dir, "badger"),
			}
			backend, closeFn, err := openBackend(ctx, cfg, logger)
			if err != nil {
				t.Fatalf("openBackend failed: %v", err)
			}
			defer closeFn()
			if err := backend.Set("k", "v"); err != nil {
				t.Fatalf("set failed: %v", err)
			}
			got, ok, err := backend.Get("k")
			if err != nil || !ok || got != "v" {
				t.Fatalf("unexpected get: %q %v %v", got, ok, err)
			}
		})
	}
}

func TestOpenGateway_None(t *testing.T) {
	gw, closeFn, err := openGateway(context.Background(), config.Config{Storage: config.StorageNone}, logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()
	if gw.Available() {
		t.Fatal("storage none should disable persistence")
	}
}

func TestRunForm_CompletesAndMarksSubmitted(t *testing.T) {
	api := apitest.New(t)
	dir := t.TempDir()
	cfg := config.Config{
		APIBaseURL: api.URL,
		Storage:    config.StorageSQLite,
		SQLitePath: filepath.Join(dir, "lf.db"),
	}
	var out bytes.Buffer
	opts := command.RunOptions{
		FormPath:     writeForm(t),
		HiddenFields: map[string]string{"utm": "mail"},
		In:           strings.NewReader("Ada\n"),
		Out:          &out,
	}

	if err := runForm(context.Background(), cfg, opts, logging.Discard()); err != nil {
		t.Fatalf("runForm failed: %v", err)
	}
	if !strings.Contains(out.String(), "Thanks!") {
		t.Fatalf("expected thank-you output:\n%s", out.String())
	}
	comps := api.Completions()
	if len(comps) != 1 || comps[0].Answers["name"] != form.Text("Ada") {
		t.Fatalf("unexpected completions: %+v", comps)
	}
	resp, ok := api.Response(comps[0].ResponseID)
	if !ok || resp.ProjectID != "proj-cli" || resp.HiddenFields["utm"] != "mail" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	gw, closeFn, err := openGateway(context.Background(), cfg, logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	submitted := gw.HasSubmitted("proj-cli")
	_ = closeFn()
	if !submitted {
		t.Fatal("submission marker should be persisted in sqlite")
	}

	// A second run sees the marker and stops.
	out.Reset()
	opts.In = strings.NewReader("Ada\n")
	if err := runForm(context.Background(), cfg, opts, logging.Discard()); err != nil {
		t.Fatalf("second runForm failed: %v", err)
	}
	if !strings.Contains(out.String(), "already submitted") {
		t.Fatalf("expected duplicate notice:\n%s", out.String())
	}
}

func TestRunForm_ProjectOverride(t *testing.T) {
	api := apitest.New(t)
	cfg := config.Config{APIBaseURL: api.URL, Storage: config.StorageMemory}
	opts := command.RunOptions{
		FormPath:  writeForm(t),
		ProjectID: "other",
		In:        strings.NewReader("Ada\n"),
		Out:       &bytes.Buffer{},
	}
	if err := runForm(context.Background(), cfg, opts, logging.Discard()); err != nil {
		t.Fatalf("runForm failed: %v", err)
	}
	comps := api.Completions()
	if len(comps) != 1 {
		t.Fatalf("expected one completion, got %d", len(comps))
	}
	if resp, _ := api.Response(comps[0].ResponseID); resp.ProjectID != "other" {
		t.Fatalf("project override not applied: %+v", resp)
	}
}

func TestRunForm_MissingFile(t *testing.T) {
	cfg := config.Config{Storage: config.StorageMemory}
	err := runForm(context.Background(), cfg, command.RunOptions{FormPath: filepath.Join(t.TempDir(), "nope.json")}, logging.Discard())
	if err == nil {
		t.Fatal("expected error for missing form file")
	}
}

func TestRunMigrateUp_CreatesDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "lf.db")
	cfg := config.Config{Storage: config.StorageSQLite, SQLitePath: path}
	if err := runMigrateUp(context.Background(), cfg, logging.Discard()); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("database file not created: %v", err)
	}
}
