package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func baseEnv() map[string]string {
	return map[string]string{
		"API_FIREBASE_PROJECT_ID":   "ph-dev",
		"API_SHEETS_SPREADSHEET_ID": "sheet-123",
	}
}

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(context.Background(), WithEnvMap(baseEnv()), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Firestore.ProjectID != "ph-dev" {
		t.Errorf("expected firestore project to default to firebase project, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.PubSub.ProjectID != "ph-dev" {
		t.Errorf("expected pubsub project to default to firebase project, got %s", cfg.PubSub.ProjectID)
	}
	if cfg.PubSub.IssueTopic != "plan-issues" {
		t.Errorf("unexpected default issue topic: %s", cfg.PubSub.IssueTopic)
	}
	if cfg.Sheets.ReadRange != defaultSheetsReadRange {
		t.Errorf("unexpected default read range: %s", cfg.Sheets.ReadRange)
	}
	if cfg.Catalog.SnapshotMaxAge != defaultCatalogMaxAge {
		t.Errorf("unexpected default snapshot max age: %s", cfg.Catalog.SnapshotMaxAge)
	}
	if cfg.Planner.Parallelism != defaultPlannerParallelism {
		t.Errorf("unexpected default planner parallelism: %d", cfg.Planner.Parallelism)
	}
	if cfg.Export.URLExpiry != defaultExportURLExpiry {
		t.Errorf("unexpected default export url expiry: %s", cfg.Export.URLExpiry)
	}
	if cfg.RateLimits.DefaultPerMinute != 120 {
		t.Errorf("unexpected default rate limit: %d", cfg.RateLimits.DefaultPerMinute)
	}
	if cfg.Idempotency.Header != defaultIdempotencyHeader {
		t.Errorf("unexpected default idempotency header: %s", cfg.Idempotency.Header)
	}
	if cfg.Idempotency.TTL != defaultIdempotencyTTL {
		t.Errorf("unexpected default idempotency ttl: %s", cfg.Idempotency.TTL)
	}
	if cfg.Security.Environment != "local" {
		t.Errorf("expected default security environment local, got %s", cfg.Security.Environment)
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":                    "9090",
		"API_SERVER_READ_TIMEOUT":            "20s",
		"API_SERVER_WRITE_TIMEOUT":           "25s",
		"API_SERVER_IDLE_TIMEOUT":            "2m",
		"API_FIREBASE_PROJECT_ID":            "ph-prod",
		"API_FIRESTORE_PROJECT_ID":           "ph-fire",
		"API_SHEETS_SPREADSHEET_ID":          "secret://sheets/master",
		"API_SHEETS_READ_RANGE":              "Catalog!A:P",
		"API_CATALOG_SNAPSHOT_MAX_AGE":       "5m",
		"API_PLANNER_PARALLELISM":            "16",
		"API_EXPORT_BUCKET":                  "ph-exports-prod",
		"API_EXPORT_SIGNER_CREDENTIALS_JSON": "secret://exports/signer",
		"API_EXPORT_URL_EXPIRY":              "10m",
		"API_PUBSUB_PROJECT_ID":              "ph-events",
		"API_PUBSUB_ISSUE_TOPIC":             "plan-issues-prod",
		"API_RATELIMIT_DEFAULT_PER_MIN":      "150",
		"API_RATELIMIT_AUTH_PER_MIN":         "300",
		"API_SECURITY_ENVIRONMENT":           "prod",
	}

	secrets := map[string]string{
		"secret://sheets/master":  "sheet-prod-id",
		"secret://exports/signer": `{"client_email":"svc@prod"}`,
	}

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Server.IdleTimeout != 2*time.Minute {
		t.Errorf("unexpected idle timeout: %s", cfg.Server.IdleTimeout)
	}
	if cfg.Firestore.ProjectID != "ph-fire" {
		t.Errorf("unexpected firestore project %s", cfg.Firestore.ProjectID)
	}
	if cfg.Sheets.SpreadsheetID != "sheet-prod-id" {
		t.Errorf("expected resolved spreadsheet id, got %s", cfg.Sheets.SpreadsheetID)
	}
	if cfg.Sheets.ReadRange != "Catalog!A:P" {
		t.Errorf("unexpected read range %s", cfg.Sheets.ReadRange)
	}
	if cfg.Catalog.SnapshotMaxAge != 5*time.Minute {
		t.Errorf("unexpected snapshot max age %s", cfg.Catalog.SnapshotMaxAge)
	}
	if cfg.Planner.Parallelism != 16 {
		t.Errorf("unexpected planner parallelism %d", cfg.Planner.Parallelism)
	}
	if cfg.Export.Bucket != "ph-exports-prod" {
		t.Errorf("unexpected export bucket %s", cfg.Export.Bucket)
	}
	if cfg.Export.SignerCredentialsJSON != `{"client_email":"svc@prod"}` {
		t.Errorf("expected resolved signer credentials, got %s", cfg.Export.SignerCredentialsJSON)
	}
	if cfg.Export.URLExpiry != 10*time.Minute {
		t.Errorf("unexpected export url expiry %s", cfg.Export.URLExpiry)
	}
	if cfg.PubSub.ProjectID != "ph-events" {
		t.Errorf("unexpected pubsub project %s", cfg.PubSub.ProjectID)
	}
	if cfg.PubSub.IssueTopic != "plan-issues-prod" {
		t.Errorf("unexpected issue topic %s", cfg.PubSub.IssueTopic)
	}
	if cfg.RateLimits.AuthenticatedPerMinute != 300 {
		t.Errorf("unexpected auth rate limit %d", cfg.RateLimits.AuthenticatedPerMinute)
	}
	if cfg.Security.Environment != "prod" {
		t.Errorf("expected security environment prod, got %s", cfg.Security.Environment)
	}
}

func TestLoadDotEnvFallback(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "API_SERVER_PORT=7070\nAPI_FIREBASE_PROJECT_ID=ph-dot\nAPI_SHEETS_SPREADSHEET_ID=sheet-dot\n"
	if err := os.WriteFile(envPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write dotenv file: %v", err)
	}

	cfg, err := Load(context.Background(), WithEnvFile(envPath), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port from dotenv 7070, got %s", cfg.Server.Port)
	}
	if cfg.Firebase.ProjectID != "ph-dot" {
		t.Errorf("expected firebase project from dotenv, got %s", cfg.Firebase.ProjectID)
	}
	if cfg.Sheets.SpreadsheetID != "sheet-dot" {
		t.Errorf("expected spreadsheet id from dotenv, got %s", cfg.Sheets.SpreadsheetID)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	_, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
}

func TestLoadSecretResolverError(t *testing.T) {
	env := baseEnv()
	env["API_EXPORT_SIGNER_CREDENTIALS_JSON"] = "secret://missing"

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected secret resolution error, got nil")
	}
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %T", err)
	}
	if secretErr.Ref != "secret://missing" {
		t.Errorf("unexpected secret ref %s", secretErr.Ref)
	}
}

func TestEnvironmentValuesMergesSources(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "API_FIREBASE_PROJECT_ID=dot-project\nAPI_SECRET_FALLBACK_FILE=.dot.local\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed writing env file: %v", err)
	}

	t.Setenv("API_FIREBASE_PROJECT_ID", "os-project")
	t.Setenv("API_SECRET_PROJECT_IDS", "prod=project-prod")

	overrides := map[string]string{
		"API_FIREBASE_PROJECT_ID": "override-project",
		"API_SECRET_VERSION_PINS": "secret://exports/signer=5",
	}

	values, err := EnvironmentValues(WithEnvFile(envPath), WithEnvMap(overrides))
	if err != nil {
		t.Fatalf("EnvironmentValues returned error: %v", err)
	}

	if got := values["API_FIREBASE_PROJECT_ID"]; got != "override-project" {
		t.Fatalf("expected override project, got %s", got)
	}
	if got := values["API_SECRET_FALLBACK_FILE"]; got != ".dot.local" {
		t.Fatalf("expected dotenv fallback file, got %s", got)
	}
	if got := values["API_SECRET_PROJECT_IDS"]; got != "prod=project-prod" {
		t.Fatalf("expected system env project map, got %s", got)
	}
	if got := values["API_SECRET_VERSION_PINS"]; got != "secret://exports/signer=5" {
		t.Fatalf("expected override version pin, got %s", got)
	}
}

func TestLoadMissingRequiredSecrets(t *testing.T) {
	_, err := Load(context.Background(),
		WithEnvMap(baseEnv()),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithRequiredSecrets("Export.SignerCredentialsJSON"),
	)
	if err == nil {
		t.Fatal("expected missing secrets error, got nil")
	}
	var missing *MissingSecretsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingSecretsError, got %T", err)
	}
	expectedRedacted := redactSecretName("Export.SignerCredentialsJSON")
	if got := missing.RedactedNames(); len(got) != 1 || got[0] != expectedRedacted {
		t.Fatalf("unexpected redacted names %v", got)
	}
}

func TestLoadMissingRequiredSecretsPanic(t *testing.T) {
	defer func() {
		rec := recover()
		if rec == nil {
			t.Fatal("expected panic when required secrets missing")
		}
		missing, ok := rec.(*MissingSecretsError)
		if !ok {
			t.Fatalf("expected MissingSecretsError panic, got %T", rec)
		}
		if len(missing.Names()) != 1 || missing.Names()[0] != "Export.SignerCredentialsJSON" {
			t.Fatalf("unexpected missing secrets %v", missing.Names())
		}
	}()

	Load(context.Background(),
		WithEnvMap(baseEnv()),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithRequiredSecrets("Export.SignerCredentialsJSON"),
		WithPanicOnMissingSecrets(),
	)
}

func TestLoadSupportsLegacySecretScheme(t *testing.T) {
	env := baseEnv()
	env["API_SHEETS_SPREADSHEET_ID"] = "sm://sheets/master"

	secrets := map[string]string{
		"secret://sheets/master": "legacy-sheet-id",
	}

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", &SecretError{Ref: ref, Err: errors.New("not found")}
	})

	cfg, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithSecretResolver(resolver),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Sheets.SpreadsheetID != "legacy-sheet-id" {
		t.Fatalf("expected legacy secret, got %s", cfg.Sheets.SpreadsheetID)
	}
}
