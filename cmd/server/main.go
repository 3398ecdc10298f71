// Back-office server and maintenance CLI
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aethra/backoffice/internal/api"
	"github.com/aethra/backoffice/internal/auth"
	"github.com/aethra/backoffice/internal/catalog"
	"github.com/aethra/backoffice/internal/config"
	"github.com/aethra/backoffice/internal/database"
	"github.com/aethra/backoffice/internal/engine"
	apperrors "github.com/aethra/backoffice/internal/errors"
	"github.com/aethra/backoffice/internal/logger"
	"github.com/aethra/backoffice/internal/models"
	"github.com/aethra/backoffice/internal/tabular"
	"github.com/aethra/backoffice/internal/validation"
)

var Version = "1.0.0"

// app bundles what every command needs
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	db      *gorm.DB
	catalog *catalog.Catalog
}

func main() {
	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}
	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		printUsage()
		return
	}

	a := bootstrap()
	defer func() { _ = a.log.Sync() }()

	switch cmd {
	case "serve":
		a.serve()
	case "migrate":
		if err := database.RunMigrations(a.db, a.log); err != nil {
			a.log.Fatal("Migration failed", zap.Error(err))
		}
		fmt.Println("Migrations complete")
	case "tenant":
		a.runTenantCmd()
	case "user":
		a.runUserCmd()
	case "privilege":
		a.runPrivilegeCmd()
	case "import":
		if !a.runImport() {
			_ = a.log.Sync()
			os.Exit(1)
		}
	case "export":
		a.runExport()
	default:
		printUsage()
		os.Exit(2)
	}
}

func bootstrap() *app {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.InitLogger(logger.LogConfig{
		Level:       cfg.Log.Level,
		Environment: cfg.Env,
		ServiceName: "backoffice",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}

	db, err := database.Open(cfg.Database, log)
	if err != nil {
		log.Fatal("Database connection failed", zap.Error(err))
	}

	cat, err := catalog.New(db, cfg.Engine, validation.New())
	if err != nil {
		log.Fatal("Catalog setup failed", zap.Error(err))
	}
	return &app{cfg: cfg, log: log, db: db, catalog: cat}
}

func (a *app) serve() {
	a.log.Info("Back-office starting", zap.String("version", Version), zap.String("env", a.cfg.Env))

	if err := database.RunMigrations(a.db, a.log); err != nil {
		a.log.Fatal("Migration failed", zap.Error(err))
	}

	privileges := auth.NewPrivilegeService(a.db)
	created, err := privileges.SeedPrivileges(context.Background(), a.catalog.Names())
	if err != nil {
		a.log.Fatal("Privilege seeding failed", zap.Error(err))
	}
	if created > 0 {
		a.log.Info("Privileges seeded", zap.Int("created", created))
	}

	jwtService := auth.NewJWTService(a.cfg.Auth)
	handler := api.NewHandler(a.db, a.catalog, jwtService, privileges, a.cfg)
	authHandler := api.NewAuthHandler(a.db, jwtService, privileges, api.NewLoginRateLimiter(a.cfg.Auth.LoginRatePerMinute))
	router := api.SetupRouter(handler, authHandler, a.log)

	srv := &http.Server{
		Addr:         ":" + a.cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		a.log.Info("Server starting", zap.String("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	a.log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("Graceful shutdown failed", zap.Error(err))
	}
}

func printUsage() {
	fmt.Println(`Usage: backoffice <command>
Commands:
  serve                                   Start server (default)
  migrate                                 Run migrations
  tenant list                             List tenants
  tenant create --code= --name=           Create tenant
  user create --login= --password= --email= --name= [--tenant=]
                                          Create user (platform user without --tenant)
  privilege seed                          Create missing privileges
  import --entity= --file= [--tenant=] [--user=]
                                          Import an .xlsx or .csv file
  export --entity= --out= [--tenant=] [--format=xlsx|csv]
                                          Export records to a file`)
}

// =============================================================================
// TENANTS AND USERS
// =============================================================================

func (a *app) runTenantCmd() {
	if len(os.Args) < 3 {
		printUsage()
		return
	}
	ctx := context.Background()
	platform := engine.UserContext{LoginID: "cli"}

	switch os.Args[2] {
	case "list":
		tenants, err := a.catalog.Tenants.Service.ListAll(ctx, engine.FilterSet{engine.FilterActive: engine.ActiveBoth}, engine.SortSpec{SortBy: "code", SortOrder: "asc"}, platform)
		if err != nil {
			a.log.Fatal("Failed to list tenants", zap.Error(err))
		}
		for _, t := range tenants {
			state := "active"
			if !t.Active {
				state = "inactive"
			}
			fmt.Printf("%d\t%s - %s (%s)\n", t.ID, t.Code, t.Name, state)
		}
	case "create":
		code, name := getFlag("--code"), getFlag("--name")
		if code == "" || name == "" {
			printUsage()
			return
		}
		tenant, err := a.catalog.Tenants.Service.CreateFromMap(ctx, map[string]interface{}{"code": code, "name": name}, platform)
		if err != nil {
			a.fatal("Failed to create tenant", err)
		}
		fmt.Printf("Tenant created: %s (id %d)\n", tenant.Code, tenant.ID)
	default:
		printUsage()
	}
}

func (a *app) runUserCmd() {
	if len(os.Args) < 3 || os.Args[2] != "create" {
		printUsage()
		return
	}
	login, password := getFlag("--login"), getFlag("--password")
	if login == "" || password == "" {
		printUsage()
		return
	}

	data := map[string]interface{}{
		"login_id": login,
		"password": password,
		"email":    getFlag("--email"),
		"name":     getFlag("--name"),
	}
	if data["name"] == "" {
		data["name"] = login
	}
	if code := getFlag("--tenant"); code != "" {
		data["tenant_id"] = a.tenantID(code)
	}

	user, err := a.catalog.Users.Service.CreateFromMap(context.Background(), data, engine.UserContext{LoginID: "cli"})
	if err != nil {
		a.fatal("Failed to create user", err)
	}
	fmt.Printf("User created: %s (id %d)\n", user.LoginID, user.ID)
}

func (a *app) runPrivilegeCmd() {
	if len(os.Args) < 3 || os.Args[2] != "seed" {
		printUsage()
		return
	}
	created, err := auth.NewPrivilegeService(a.db).SeedPrivileges(context.Background(), a.catalog.Names())
	if err != nil {
		a.log.Fatal("Privilege seeding failed", zap.Error(err))
	}
	fmt.Printf("Privileges created: %d\n", created)
}

// =============================================================================
// BULK IMPORT AND EXPORT
// =============================================================================

// runImport reports whether every row was imported
func (a *app) runImport() bool {
	module := a.module(getFlag("--entity"))
	path := getFlag("--file")
	if path == "" {
		printUsage()
		os.Exit(2)
	}
	uctx := a.callerContext()

	file, err := os.Open(path)
	if err != nil {
		a.log.Fatal("Failed to open import file", zap.String("file", path), zap.Error(err))
	}
	defer file.Close()

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Engine.ImportTimeout)
	defer cancel()
	result, err := module.Import(logger.WithContext(ctx, a.log), file, filepath.Base(path), uctx)
	if err != nil {
		a.fatal("Import failed", err)
	}

	fmt.Println(result.Message)
	for _, e := range result.Errors {
		fmt.Println("  " + e)
	}
	return result.Success
}

func (a *app) runExport() {
	module := a.module(getFlag("--entity"))
	out := getFlag("--out")
	if out == "" {
		printUsage()
		os.Exit(2)
	}

	formatName := getFlag("--format")
	if formatName == "" {
		formatName = filepath.Ext(out)
	}
	format, err := tabular.ParseFormat(formatName)
	if err != nil {
		a.log.Fatal("Unsupported export format", zap.String("format", formatName))
	}

	ctx := logger.WithContext(context.Background(), a.log)
	sheet, err := module.Export(ctx, engine.FilterSet{engine.FilterActive: engine.ActiveBoth}, engine.SortSpec{}, a.callerContext())
	if err != nil {
		a.log.Fatal("Export failed", zap.Error(err))
	}
	if err := tabular.WriteFile(out, sheet, format); err != nil {
		a.log.Fatal("Export failed", zap.Error(err))
	}
	fmt.Printf("Exported %d rows to %s\n", len(sheet.Rows), out)
}

func (a *app) module(name string) catalog.Bulk {
	m, ok := a.catalog.Lookup(name)
	if !ok {
		a.log.Fatal("Unknown entity", zap.String("entity", name), zap.Strings("known", a.catalog.Names()))
	}
	return m
}

// callerContext builds the acting caller from --tenant and --user. Without
// --tenant the command runs as a platform caller.
func (a *app) callerContext() engine.UserContext {
	uctx := engine.UserContext{LoginID: "cli"}
	if code := getFlag("--tenant"); code != "" {
		id := a.tenantID(code)
		uctx.TenantID = &id
	}

	login := getFlag("--user")
	if login == "" {
		return uctx
	}
	query := a.db.Where("login_id = ?", login)
	if uctx.TenantID == nil {
		query = query.Where("tenant_id IS NULL")
	} else {
		query = query.Where("tenant_id = ?", *uctx.TenantID)
	}
	var user models.User
	if err := query.First(&user).Error; err != nil {
		a.log.Fatal("User not found", zap.String("login_id", login), zap.Error(err))
	}
	uctx.UserID = user.ID
	uctx.LoginID = user.LoginID
	return uctx
}

// tenantID resolves a tenant code, or a numeric id
func (a *app) tenantID(code string) uint {
	if id, err := strconv.ParseUint(code, 10, 64); err == nil {
		return uint(id)
	}
	var tenant models.Tenant
	if err := a.db.Where("code = ?", code).First(&tenant).Error; err != nil {
		a.log.Fatal("Tenant not found", zap.String("code", code), zap.Error(err))
	}
	return tenant.ID
}

// fatal logs err, including the failed fields of a validation error, and exits
func (a *app) fatal(msg string, err error) {
	fields := []zap.Field{zap.Error(err)}
	var ve *apperrors.ValidationError
	if errors.As(err, &ve) {
		fields = append(fields, zap.Any("fields", ve.Fields))
	}
	a.log.Fatal(msg, fields...)
}

func getFlag(name string) string {
	prefix := name + "="
	for _, arg := range os.Args {
		if strings.HasPrefix(arg, prefix) {
			return arg[len(prefix):]
		}
	}
	return ""
}
