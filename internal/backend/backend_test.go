package backend

import (
	"context"
	"path/filepath"
	"testing"

	"ledger/internal/config"
	"ledger/internal/registry"
)

func TestFromAppConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.Config
		want    BackendType
		wantErr bool
	}{
		{name: "nil config", cfg: nil, wantErr: true},
		{name: "sqlite", cfg: &config.Config{DataBackend: "sqlite", SQLiteDBPath: "x.db"}, want: SQLiteBackend},
		{name: "file", cfg: &config.Config{DataBackend: "file", RegistryFile: "vendors.json"}, want: FileBackend},
		{name: "unknown", cfg: &config.Config{DataBackend: "sheets"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromAppConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FromAppConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && got.Type != tt.want {
				t.Errorf("FromAppConfig() type = %v, want %v", got.Type, tt.want)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "sqlite with path", config: Config{Type: SQLiteBackend, SQLiteDBPath: "x.db"}},
		{name: "sqlite without path", config: Config{Type: SQLiteBackend}, wantErr: true},
		{name: "file with path", config: Config{Type: FileBackend, RegistryFile: "v.json"}},
		{name: "file without path", config: Config{Type: FileBackend}, wantErr: true},
		{name: "invalid type", config: Config{Type: "memory"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFactory_CreateBackend(t *testing.T) {
	dir := t.TempDir()
	configs := []Config{
		{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(dir, "ledger.db")},
		{Type: FileBackend, RegistryFile: filepath.Join(dir, "vendors_master.json")},
	}

	for _, cfg := range configs {
		t.Run(cfg.Type.String(), func(t *testing.T) {
			ctx := context.Background()
			res, err := NewFactory(nil).CreateBackend(ctx, cfg)
			if err != nil {
				t.Fatalf("CreateBackend() error = %v", err)
			}
			if res.Cleanup != nil {
				defer res.Cleanup()
			}

			run := registry.New()
			run.Resolve("Acme", "Acme Inc")
			if _, err := res.Store.Save(ctx, run); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			got, err := res.Store.Load(ctx)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if _, ok := got.Lookup("Acme"); !ok {
				t.Errorf("saved vendor not found after Load")
			}
		})
	}
}

func TestFactory_RejectsInvalidConfig(t *testing.T) {
	if _, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: SQLiteBackend}); err == nil {
		t.Fatal("expected error for missing database path")
	}
}
