package deps

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/smartmarks/internal/domain"
	"github.com/MrSnakeDoc/smartmarks/internal/logger"
	"github.com/MrSnakeDoc/smartmarks/internal/sources/homepage"
	"github.com/MrSnakeDoc/smartmarks/internal/view"
)

// Auth is the part of the auth service the HTTP layer drives.
type Auth interface {
	view.Auth
	SignInWithOAuth(ctx context.Context, provider, redirectTo string) (string, error)
	ExchangeCodeForSession(ctx context.Context, state, code string) (*domain.Session, error)
	RefreshSession(ctx context.Context, token string) (*domain.Session, error)
	SignOut(ctx context.Context, token string) error
}

// Check is one readiness probe (postgres, redis...).
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// Stats feeds /infra. Nil funcs are reported as unknown.
type Stats struct {
	ActiveChannels func() int
	AuthListeners  func() int
	Sessions       func(ctx context.Context) (int64, error)
}

type Deps struct {
	Logger          logger.Logger
	StartTime       time.Time
	Version         string
	Commit          string
	BuildDate       string
	GoVersion       string
	TimeNow         func() time.Time // for testing, defaults to time.Now
	AllowedHosts    []string         // Host headers allowed to access the server
	AllowedCIDRS    []string         // IPs allowed to access readyz/infra/admin endpoints
	TrustProxy      bool             // true if running behind a trusted reverse proxy (e.g., cloudflared)
	RateLimitBurst  int              // login attempts per client before throttling
	RateLimitPerMin int              // sustained login attempts per minute per client

	CallbackURL  string // absolute OAuth redirect URL
	CookieName   string // access token cookie
	CookieSecure bool   // Secure flag on the cookie

	Auth        Auth             // sign-in and session lifecycle
	Views       *view.Registry   // live views by id
	ViewDeps    view.Deps        // collaborators handed to every view
	ViewOptions view.Options     // mode and notice queue size for live views
	Renderer    *view.Renderer   // page and fragment templates
	Importer    *homepage.Loader // bookmarks.yaml reader (size limited)
	Mapper      *homepage.Mapper // bookmarks.yaml -> drafts
	Heartbeat   time.Duration    // SSE keep-alive comment period

	Checks       []Check       // readiness probes
	Stats        Stats         // live counters for /infra
	SweepTrigger chan struct{} // Channel to trigger a manual session sweep
}

// Now returns d.TimeNow() or time.Now().
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
