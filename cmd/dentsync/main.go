// Command dentsync is the clinic workstation client: it mirrors the hosted
// backend locally, queues writes made while offline and replays them on sync.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/dentora/dentsync/internal/authz"
	"github.com/dentora/dentsync/internal/cache"
	"github.com/dentora/dentsync/internal/config"
	"github.com/dentora/dentsync/internal/errs"
	"github.com/dentora/dentsync/internal/limiter"
	"github.com/dentora/dentsync/internal/localstore"
	"github.com/dentora/dentsync/internal/migrate"
	"github.com/dentora/dentsync/internal/model"
	remotepg "github.com/dentora/dentsync/internal/remote/postgres"
	"github.com/dentora/dentsync/internal/service"
	"github.com/dentora/dentsync/internal/storage"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func usage() {
	fmt.Fprintf(os.Stderr, `dentsync
Usage:
  dentsync [-config file] [-v] <cmd> [args]

Commands:
  version
  migrate                                      (bootstrap backend schema)
  signup     -email <e> -password <p> [-name <full name>]
  login      -email <e> -password <p>
  logout
  whoami
  sync                                         (drain queue, refresh mirror)
  status                                       (pending queue depth)
  patient    add|list|rm ...
  appt       add|list|rm ...
  treatment  add|list|rm ...
  request    add|list|rm ...
  invoice    next
  chart      -patient <uuid>
  upload     -file <path> [-key <object key>]
`)
	os.Exit(2)
}

// app bundles everything a subcommand needs.
type app struct {
	cfg   *config.Config
	log   *zap.Logger
	store *localstore.Store
	db    *remotepg.DB
	rows  *remotepg.RowsRepo
	procs *remotepg.ProcsRepo
	auth  *service.AuthShim
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}
	_ = a.store.Close()
	_ = a.log.Sync()
}

func newApp(ctx context.Context, cfgPath string, verbose bool) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := zap.NewNop()
	if verbose {
		if logger, err = zap.NewDevelopment(); err != nil {
			return nil, err
		}
	}
	if cfg.Remote.DSN == "" {
		return nil, errors.New("missing remote DSN (config remote.dsn or DENTSYNC_REMOTE_DSN)")
	}
	clinicID, err := uuid.FromString(cfg.ClinicID)
	if err != nil {
		return nil, fmt.Errorf("bad clinic_id: %w", err)
	}

	// pgxpool connects lazily, so building the remote side works offline too
	db, err := remotepg.New(ctx, cfg.Remote.DSN)
	if err != nil {
		return nil, fmt.Errorf("remote pool: %w", err)
	}

	store := localstore.New(cfg.Local.DBPath)
	identity := remotepg.NewIdentityRepo(db, []byte(cfg.Remote.SignKey), cfg.Remote.AccessTTL)
	lim := limiter.NewMemory(15*time.Minute, 5, 15*time.Minute)
	auth := service.NewAuthShim(identity, store, lim, []byte(cfg.Remote.SignKey), clinicID, cfg.Local.SessionTTL, logger)

	return &app{
		cfg:   cfg,
		log:   logger,
		store: store,
		db:    db,
		rows:  remotepg.NewRowsRepo(db),
		procs: remotepg.NewProcsRepo(db),
		auth:  auth,
	}, nil
}

// facade resolves the current session and builds the data-access facade for it.
func (a *app) facade(ctx context.Context) (*service.Facade, error) {
	sess, err := a.auth.CurrentSession(ctx)
	if err != nil {
		if errors.Is(err, errs.ErrSessionExpired) {
			return nil, errors.New("not signed in (run: dentsync login)")
		}
		return nil, err
	}

	var clinic *uuid.UUID
	if !sess.Caps.Has(authz.CapAllClinics) {
		c := sess.User.ClinicID
		clinic = &c
	}
	engine := service.NewEngine(a.store, a.rows, clinic, a.cfg.Remote.PageSize, a.log)
	stats := cache.New[uuid.UUID, model.ChartStats](128, 5*time.Minute)
	return service.NewFacade(a.store, a.rows, a.procs, engine, sess, stats, a.log), nil
}

func main() {
	cfgPath := flag.String("config", config.DefaultPath(), "config file")
	verbose := flag.Bool("v", false, "verbose logging")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)
	args := flag.Args()[1:]

	if cmd == "version" {
		fmt.Printf("dentsync %s (%s)\n", version, buildDate)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	a, err := newApp(ctx, *cfgPath, *verbose)
	if err != nil {
		fail(err)
	}
	defer a.close()

	switch cmd {

	case "migrate":
		if err := migrate.Up(ctx, a.cfg.Remote.DSN); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "signup":
		fs := flag.NewFlagSet("signup", flag.ExitOnError)
		email := fs.String("email", "", "email")
		password := fs.String("password", "", "password")
		name := fs.String("name", "", "full name")
		_ = fs.Parse(args)
		if *email == "" || *password == "" {
			fail(errors.New("need -email and -password"))
		}
		sess, err := a.auth.SignUp(ctx, *email, *password, *name)
		if err != nil {
			fail(err)
		}
		printSession(sess)

	case "login":
		fs := flag.NewFlagSet("login", flag.ExitOnError)
		email := fs.String("email", "", "email")
		password := fs.String("password", "", "password")
		_ = fs.Parse(args)
		if *email == "" || *password == "" {
			fail(errors.New("need -email and -password"))
		}
		sess, err := a.auth.SignIn(ctx, *email, *password)
		if err != nil {
			fail(err)
		}
		printSession(sess)

	case "logout":
		if err := a.auth.SignOut(ctx); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "whoami":
		sess, err := a.auth.CurrentSession(ctx)
		if err != nil {
			fail(err)
		}
		printSession(sess)

	case "sync":
		f, err := a.facade(ctx)
		if err != nil {
			fail(err)
		}
		rep, err := f.Sync(ctx)
		if err != nil && !errors.Is(err, errs.ErrRemoteUnavailable) {
			fail(err)
		}
		printJSON(rep)
		if err != nil {
			fmt.Fprintln(os.Stderr, "backend unreachable, queued writes kept for next sync")
		}

	case "status":
		f, err := a.facade(ctx)
		if err != nil {
			fail(err)
		}
		depth, err := f.QueueDepth(ctx)
		if err != nil {
			fail(err)
		}
		printJSON(map[string]int{"pending_ops": depth})

	case "patient":
		cmdPatient(ctx, a, args)
	case "appt":
		cmdAppointment(ctx, a, args)
	case "treatment":
		cmdTreatment(ctx, a, args)
	case "request":
		cmdRequest(ctx, a, args)

	case "invoice":
		if len(args) < 1 || args[0] != "next" {
			usage()
		}
		f, err := a.facade(ctx)
		if err != nil {
			fail(err)
		}
		n, err := f.NextInvoiceNumber(ctx)
		if err != nil {
			fail(err)
		}
		fmt.Println(n)

	case "chart":
		fs := flag.NewFlagSet("chart", flag.ExitOnError)
		patient := fs.String("patient", "", "patient id (uuid)")
		_ = fs.Parse(args)
		pid, err := uuid.FromString(*patient)
		if err != nil {
			fail(errors.New("need -patient <uuid>"))
		}
		f, err := a.facade(ctx)
		if err != nil {
			fail(err)
		}
		st, err := f.ChartStats(ctx, pid)
		if err != nil {
			fail(err)
		}
		printJSON(st)

	case "upload":
		cmdUpload(ctx, a, args)

	default:
		usage()
	}
}

// cmdUpload pushes one file to the clinic's image bucket. Uploads are not
// queued: binary assets are online-only.
func cmdUpload(ctx context.Context, a *app, args []string) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	file := fs.String("file", "", "file to upload")
	key := fs.String("key", "", "object key (defaults to file name)")
	contentType := fs.String("content-type", "", "content type")
	_ = fs.Parse(args)
	if *file == "" {
		fail(errors.New("need -file"))
	}
	body, err := os.ReadFile(*file)
	if err != nil {
		fail(err)
	}
	if *key == "" {
		*key = fmt.Sprintf("xrays/%d-%s", time.Now().Unix(), filepath.Base(*file))
	}

	client, err := storage.NewS3Client(storage.S3Config{
		Endpoint:  a.cfg.Storage.Endpoint,
		Region:    a.cfg.Storage.Region,
		Bucket:    a.cfg.Storage.Bucket,
		AccessKey: a.cfg.Storage.AccessKey,
		SecretKey: a.cfg.Storage.SecretKey,
	})
	if err != nil {
		fail(err)
	}
	res, err := client.Upload(ctx, storage.UploadInput{Key: *key, Body: body, ContentType: *contentType})
	if err != nil {
		fail(err)
	}
	printJSON(res)
}

// ---- helpers ----

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func printSession(sess service.Session) {
	printJSON(map[string]any{
		"user":       sess.User.Email,
		"name":       sess.User.FullName,
		"role":       sess.User.Role,
		"clinic_id":  sess.User.ClinicID,
		"expires_at": sess.ExpiresAt.UTC().Format(time.RFC3339),
		"offline":    sess.Offline,
	})
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
