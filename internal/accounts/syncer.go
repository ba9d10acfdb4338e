package accounts

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"cycle-journal/internal/errors"
	"cycle-journal/internal/id"
	"cycle-journal/internal/logging"
	"cycle-journal/internal/models"
	"cycle-journal/internal/security"
	"cycle-journal/internal/store"
)

// PasswordSource looks up the password of a linked account. Passwords live
// in credentials.toml, never in the database.
type PasswordSource interface {
	Password(accountID string) (string, bool)
}

// Passwords is a PasswordSource keyed by account ID.
type Passwords map[string]string

// Password implements PasswordSource. Keys read through viper arrive
// lower-cased, so the lookup falls back to the lower-case ID.
func (p Passwords) Password(accountID string) (string, bool) {
	pw, ok := p[accountID]
	if !ok {
		pw, ok = p[strings.ToLower(accountID)]
	}
	return pw, ok && pw != ""
}

// SyncerOptions tunes a Syncer.
type SyncerOptions struct {
	// Concurrency bounds parallel requests in SyncAll.
	Concurrency int
	// StaleAfter is how old a snapshot may get before the account is
	// reported as stale.
	StaleAfter time.Duration
}

// Syncer refreshes linked accounts and records their snapshots.
type Syncer struct {
	store     store.DataStore
	service   Service
	passwords PasswordSource
	freshness *store.SyncManager
	opts      SyncerOptions
	logger    zerolog.Logger
	safe      *security.SafeLogger
	validator *security.InputValidator
}

// NewSyncer creates a syncer. service may be nil when no account-data
// service is configured; syncing then records an error per account.
func NewSyncer(ds store.DataStore, service Service, passwords PasswordSource, opts SyncerOptions, logger zerolog.Logger) *Syncer {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = time.Hour
	}
	if passwords == nil {
		passwords = Passwords{}
	}
	logger = logger.With().Str("component", "account_sync").Logger()
	return &Syncer{
		store:     ds,
		service:   service,
		passwords: passwords,
		freshness: store.NewSyncManager(ds, store.SyncConfig{StaleAfter: opts.StaleAfter}),
		opts:      opts,
		logger:    logger,
		safe:      security.NewSafeLogger(logger),
		validator: security.NewInputValidator(true),
	}
}

// LinkRequest describes an account to link.
type LinkRequest struct {
	Firm     string `json:"firm"`
	Platform string `json:"platform"`
	Login    string `json:"login"`
	Server   string `json:"server"`
	Label    string `json:"label"`
}

// Link validates and stores a new account. The password is not part of the
// request; add it to credentials.toml under the returned ID.
func (s *Syncer) Link(ctx context.Context, req LinkRequest) (*models.Account, error) {
	platform, ok := models.ParsePlatform(req.Platform)
	if !ok {
		return nil, errors.NewValidationError("platform", req.Platform, "must be mt4 or mt5")
	}
	firm := strings.TrimSpace(req.Firm)
	if firm == "" {
		return nil, errors.NewValidationError("firm", firm, "cannot be empty")
	}
	if err := s.validator.ValidateLabel("firm", firm); err != nil {
		return nil, err
	}
	login := strings.TrimSpace(req.Login)
	if err := s.validator.ValidateID("login", login); err != nil {
		return nil, err
	}
	server := strings.TrimSpace(req.Server)
	if err := s.validator.ValidateLabel("server", server); err != nil {
		return nil, err
	}
	label := strings.TrimSpace(req.Label)
	if err := s.validator.ValidateLabel("label", label); err != nil {
		return nil, err
	}

	acct := &models.Account{
		ID:       id.New(),
		Firm:     firm,
		Platform: platform,
		Login:    login,
		Server:   server,
		Label:    label,
	}
	if err := s.store.SaveAccount(ctx, acct); err != nil {
		return nil, err
	}
	s.safe.Info().
		Str("account_id", acct.ID).
		Str("firm", acct.Firm).
		Str("login", acct.Login).
		Msg("Account linked")
	return acct, nil
}

// Unlink removes an account and its snapshot history.
func (s *Syncer) Unlink(ctx context.Context, accountID string) error {
	if err := s.store.DeleteAccount(ctx, accountID); err != nil {
		return err
	}
	s.logger.Info().Str("account_id", accountID).Msg("Account unlinked")
	return nil
}

// SyncAccount refreshes one account. Failures of the account-data service
// are recorded on the returned snapshot rather than returned; only a
// missing account or a storage failure is an error.
func (s *Syncer) SyncAccount(ctx context.Context, accountID string) (*models.AccountSnapshot, error) {
	acct, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.sync(ctx, *acct)
}

func (s *Syncer) sync(ctx context.Context, acct models.Account) (*models.AccountSnapshot, error) {
	start := time.Now()
	snap, fetchErr := s.fetch(ctx, acct)
	logging.LogSync(logging.WithAccount(s.logger, acct.ID), acct.ID, time.Since(start), maskErr(fetchErr))

	if fetchErr != nil {
		snap = &models.AccountSnapshot{
			AccountID: acct.ID,
			SyncedAt:  time.Now(),
			Error:     security.MaskSensitive(fetchErr.Error()),
		}
	}
	snap.AccountID = acct.ID
	if err := s.store.SaveSnapshot(ctx, snap); err != nil {
		return nil, err
	}
	if fetchErr == nil {
		if err := s.freshness.MarkSynced(store.AccountSyncType(acct.ID)); err != nil {
			s.logger.Warn().Err(err).Str("account_id", acct.ID).Msg("Failed to record sync time")
		}
	}
	return snap, nil
}

func (s *Syncer) fetch(ctx context.Context, acct models.Account) (*models.AccountSnapshot, error) {
	if s.service == nil {
		return nil, errors.NewSyncError(acct.ID, 0, "no account-data service configured", nil)
	}
	password, ok := s.passwords.Password(acct.ID)
	if !ok {
		return nil, errors.NewSyncError(acct.ID, 0, "no password in credentials.toml", errors.ErrMissingCredentials)
	}
	return s.service.Fetch(ctx, acct.ID, CredentialsFor(acct, password))
}

func maskErr(err error) error {
	if err == nil {
		return nil
	}
	return errors.New(security.MaskSensitive(err.Error()))
}

// SyncResult is the outcome for one account in a SyncAll run.
type SyncResult struct {
	AccountID string                  `json:"account_id"`
	Snapshot  *models.AccountSnapshot `json:"snapshot,omitempty"`
	Error     string                  `json:"error,omitempty"`
}

// SyncReport summarizes a SyncAll run.
type SyncReport struct {
	Started   time.Time    `json:"started"`
	Finished  time.Time    `json:"finished"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Results   []SyncResult `json:"results"`
}

// SyncAll refreshes every linked account with bounded concurrency. One
// account failing does not stop the others; results keep the order in
// which accounts were linked.
func (s *Syncer) SyncAll(ctx context.Context) (*SyncReport, error) {
	accts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}

	report := &SyncReport{Started: time.Now(), Results: make([]SyncResult, len(accts))}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, acct := range accts {
		i, acct := i, acct
		g.Go(func() error {
			snap, err := s.sync(gctx, acct)
			res := SyncResult{AccountID: acct.ID, Snapshot: snap}
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				res.Error = err.Error()
				report.Failed++
			case !snap.OK():
				res.Error = snap.Error
				report.Failed++
			default:
				report.Succeeded++
			}
			report.Results[i] = res
			// storage failures abort the run
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	report.Finished = time.Now()
	if err := s.freshness.MarkSynced(store.SyncTypeAccounts); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to record sync time")
	}
	s.logger.Info().
		Int("accounts", len(accts)).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Dur("duration", report.Finished.Sub(report.Started)).
		Msg("Account sync run finished")
	return report, nil
}

// AccountView is an account with its latest snapshot and freshness.
type AccountView struct {
	models.AccountStatus
	HasPassword bool                 `json:"has_password"`
	Freshness   *store.DataFreshness `json:"freshness"`
}

// Status lists every linked account with its latest snapshot.
func (s *Syncer) Status(ctx context.Context) ([]AccountView, error) {
	accts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]AccountView, 0, len(accts))
	for _, a := range accts {
		v := AccountView{
			AccountStatus: models.AccountStatus{Account: a},
			Freshness:     s.freshness.GetDataFreshness(store.AccountSyncType(a.ID)),
		}
		_, v.HasPassword = s.passwords.Password(a.ID)
		latest, err := s.store.LatestSnapshot(ctx, a.ID)
		switch {
		case err == nil:
			v.Latest = latest
		case !errors.Is(err, errors.ErrNotFound):
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

// Stale returns the accounts whose last successful sync is older than the
// configured StaleAfter, including accounts never synced.
func (s *Syncer) Stale(ctx context.Context) ([]models.Account, error) {
	accts, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, err
	}
	var stale []models.Account
	for _, a := range accts {
		if s.freshness.IsDataStale(store.AccountSyncType(a.ID)) {
			stale = append(stale, a)
		}
	}
	return stale, nil
}

// LastRun reports when SyncAll last completed.
func (s *Syncer) LastRun() *store.DataFreshness {
	return s.freshness.GetDataFreshness(store.SyncTypeAccounts)
}
