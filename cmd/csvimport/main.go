package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/nbbaier/tableimport/internal/admin"
	"github.com/nbbaier/tableimport/internal/application"
	"github.com/nbbaier/tableimport/internal/config"
	"github.com/nbbaier/tableimport/internal/core"
	"github.com/nbbaier/tableimport/internal/handler"
	"github.com/nbbaier/tableimport/internal/logging"
	"github.com/nbbaier/tableimport/internal/report"
)

func main() {
	file := flag.String("file", "", "delimited text file to import")
	table := flag.String("table", "", "target table name (default: file name without extension)")
	profileName := flag.String("profile", "", "profile from the profile file (default: default_profile)")
	profilesDir := flag.String("profiles-dir", "", "directory holding config.yaml (default: ~/.csvimport)")
	dsn := flag.String("dsn", "", "PostgreSQL connection string (overrides profile and DATABASE_URL)")
	delimiter := flag.String("delimiter", "", `field delimiter: "comma", "semicolon", "tab", "pipe" or one character (default: detect)`)
	batchSize := flag.Int("batch-size", 0, "rows per insert batch (overrides profile)")
	preview := flag.Bool("preview", false, "print the inferred layout without importing")
	drop := flag.String("drop", "", "comma-separated tables to drop instead of importing")
	saveProfile := flag.String("save-profile", "", "store the effective dsn, batch size and delimiter under this profile name")
	flag.Parse()

	_ = godotenv.Load()
	flushLogs := logging.Setup(envOr("LOG_LEVEL", "warn"), envOr("LOG_FORMAT", "text"), os.Getenv("LOG_SEQ_URL"))

	code := run(options{
		file:        *file,
		table:       *table,
		profileName: *profileName,
		profilesDir: *profilesDir,
		dsn:         *dsn,
		delimiter:   *delimiter,
		batchSize:   *batchSize,
		preview:     *preview,
		drop:        *drop,
		saveProfile: *saveProfile,
	})
	flushLogs()
	os.Exit(code)
}

type options struct {
	file, table              string
	profileName, profilesDir string
	dsn, delimiter           string
	batchSize                int
	preview                  bool
	drop                     string
	saveProfile              string
}

func run(o options) int {
	profiles, err := config.LoadProfiles(o.profilesDir)
	if err != nil {
		return fail(err)
	}
	profile, err := profiles.Lookup(o.profileName)
	if err != nil {
		// Only an explicitly named profile has to exist.
		if o.profileName != "" || !errors.Is(err, config.ErrProfileNotFound) {
			return fail(err)
		}
		profile = &config.Profile{}
	}

	// flag > profile > environment
	connDSN := firstNonEmpty(o.dsn, profile.DSN, os.Getenv("DATABASE_URL"), os.Getenv("DB_URL"))
	delim := firstNonEmpty(o.delimiter, profile.Delimiter)
	batch := core.DefaultBatchSize
	if profile.BatchSize > 0 {
		batch = profile.BatchSize
	}
	if o.batchSize > 0 {
		batch = o.batchSize
	}

	d, err := core.ParseDelimiter(delim)
	if err != nil {
		return fail(err)
	}

	if o.saveProfile != "" {
		if err := saveProfile(profiles, o.profilesDir, config.Profile{
			Name: o.saveProfile, DSN: connDSN, BatchSize: batch, Delimiter: delim,
		}); err != nil {
			return fail(err)
		}
		fmt.Printf("saved profile %q\n", o.saveProfile)
		if o.file == "" && o.drop == "" {
			return 0
		}
	}

	if o.file == "" && o.drop == "" {
		flag.Usage()
		return 2
	}

	cfg := &config.Config{Import: config.ImportConfig{
		BatchSize:     batch,
		MaxConcurrent: 1,
		MaxWaitTime:   time.Second,
		Timeout:       handler.ImportTimeout,
	}}

	job := &handler.FileImport{
		Path:        o.file,
		Table:       firstNonEmpty(o.table, tableFromPath(o.file)),
		Options:     core.ParseOptions{Delimiter: d},
		PreviewOnly: o.preview,
	}

	// Previews never touch the database.
	if o.preview && o.drop == "" {
		job.Service = core.NewService(nil, cfg)
		return finish(application.Run(job))
	}

	if connDSN == "" {
		return fail(errors.New("no database: pass -dsn, set a profile, or set DATABASE_URL"))
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, connDSN)
	if err != nil {
		return fail(fmt.Errorf("connect: %w", err))
	}
	defer pool.Close()

	service := core.NewService(pool, cfg)

	if o.drop != "" {
		dropped, err := admin.DropTables(ctx, service, splitList(o.drop))
		for _, t := range dropped {
			fmt.Printf("dropped %s\n", t)
		}
		if err != nil {
			return fail(err)
		}
		return 0
	}

	job.Service = service
	return finish(application.Run(job))
}

func finish(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, application.ErrInterrupted) {
		return 130
	}
	if errors.Is(err, application.ErrProgram) {
		return fail(err)
	}
	// Job errors were already rendered by the program.
	return 1
}

func fail(err error) int {
	fmt.Fprintln(os.Stderr, report.Error(err))
	return 1
}

func saveProfile(p *config.Profiles, dir string, pr config.Profile) error {
	replaced := false
	for i := range p.Profiles {
		if p.Profiles[i].Name == pr.Name {
			p.Profiles[i] = pr
			replaced = true
		}
	}
	if !replaced {
		p.Profiles = append(p.Profiles, pr)
	}
	if p.DefaultProfile == "" {
		p.DefaultProfile = pr.Name
	}
	return config.SaveProfiles(dir, p)
}

func tableFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
