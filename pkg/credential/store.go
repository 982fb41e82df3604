package credential

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/singleflight"

	"github.com/tarsyio/llmproxy/pkg/masking"
)

// Store resolves tenants to upstream credentials, refreshing OAuth tokens
// transparently and reloading its directory of tenant files on filesystem
// notification. All exported methods are safe for concurrent use.
type Store struct {
	dir           string
	refreshLead   time.Duration
	oauthTokenURL string
	oauthClientID string
	masker        *masking.Service
	log           *slog.Logger

	mu    sync.RWMutex
	creds map[string]*Credential

	sf singleflight.Group

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// Options configures a new Store.
type Options struct {
	Dir           string
	RefreshLead   time.Duration
	OAuthTokenURL string
	OAuthClientID string
	Masker        *masking.Service
}

// New constructs a Store and performs the initial scan of Dir. Callers must
// call Start to begin watching for filesystem changes.
func New(opts Options) (*Store, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("credential store: dir is required")
	}
	s := &Store{
		dir:           opts.Dir,
		refreshLead:   opts.RefreshLead,
		oauthTokenURL: opts.OAuthTokenURL,
		oauthClientID: opts.OAuthClientID,
		masker:        opts.Masker,
		log:           slog.With("component", "credential_store"),
		creds:         make(map[string]*Credential),
		stopCh:        make(chan struct{}),
	}

	if err := s.scan(); err != nil {
		return nil, err
	}

	return s, nil
}

// Start begins watching Dir for filesystem notifications and reloads
// affected tenant files as they change.
func (s *Store) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("credential store: creating watcher: %w", err)
	}
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("credential store: watching %s: %w", s.dir, err)
	}
	s.watcher = watcher

	s.wg.Add(1)
	go s.watchLoop(ctx)

	return nil
}

// Stop halts the filesystem watcher and waits for its goroutine to exit.
func (s *Store) Stop() {
	close(s.stopCh)
	if s.watcher != nil {
		s.watcher.Close()
	}
	s.wg.Wait()
}

func (s *Store) watchLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			tenant := filepath.Base(ev.Name)
			if err := s.reloadTenant(tenant); err != nil {
				s.log.Warn("failed to reload tenant credential file", "tenant", tenant, "error", err)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.Warn("credential watcher error", "error", err)
		}
	}
}

// scan loads every tenant file currently in Dir.
func (s *Store) scan() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			s.log.Warn("credentials directory does not exist yet", "dir", s.dir)
			return nil
		}
		return fmt.Errorf("credential store: reading %s: %w", s.dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := s.reloadTenant(entry.Name()); err != nil {
			s.log.Warn("failed to load tenant credential file", "file", entry.Name(), "error", err)
		}
	}
	return nil
}

func (s *Store) reloadTenant(filename string) error {
	tenant := strings.TrimSuffix(filename, filepath.Ext(filename))
	path, err := s.tenantPath(tenant)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var rec fileRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	if rec.Tenant == "" {
		rec.Tenant = tenant
	}

	cred := rec.toCredential()
	s.registerSecrets(cred)

	s.mu.Lock()
	s.creds[cred.Tenant] = cred
	s.mu.Unlock()

	return nil
}

// tenantPath validates that tenant resolves to a single filename inside
// Dir with no path traversal, then returns the path to its credential file.
func (s *Store) tenantPath(tenant string) (string, error) {
	if tenant == "" || tenant != filepath.Base(tenant) || strings.ContainsAny(tenant, `/\`) || tenant == "." || tenant == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidTenantName, tenant)
	}
	return filepath.Join(s.dir, tenant+".json"), nil
}

func (s *Store) registerSecrets(cred *Credential) {
	if s.masker == nil {
		return
	}
	if cred.APIKey != "" {
		s.masker.RegisterSecret(cred.APIKey, "tenant_api_key")
	}
	if cred.OAuth != nil {
		if cred.OAuth.AccessToken != "" {
			s.masker.RegisterSecret(cred.OAuth.AccessToken, "oauth_access_token")
		}
		if cred.OAuth.RefreshToken != "" {
			s.masker.RegisterSecret(cred.OAuth.RefreshToken, "oauth_refresh_token")
		}
	}
	if cred.ClientAuthKey != "" {
		s.masker.RegisterSecret(cred.ClientAuthKey, "client_auth_key")
	}
}

// Resolve returns the tenant's currently valid upstream credential,
// transparently refreshing an OAuth token that is inside the refresh lead
// window or already expired. A refresh failure surfaces as ErrUpstreamAuth
// without corrupting the in-memory copy; the old token remains usable until
// its hard expiry.
func (s *Store) Resolve(ctx context.Context, tenant string) (*Credential, error) {
	s.mu.RLock()
	cred, ok := s.creds[tenant]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTenant, tenant)
	}

	now := time.Now()
	if cred.Valid(now, s.refreshLead) {
		return cred, nil
	}

	refreshed, err := s.refreshTenant(ctx, tenant, cred)
	if err != nil {
		// Refresh failed but the token has not hard-expired yet; callers
		// that got here because Valid() returned false due to the refresh
		// lead window can still use the old token until it truly expires.
		if !cred.Expired(time.Now()) {
			return cred, nil
		}
		return nil, err
	}
	return refreshed, nil
}

// refreshTenant performs a single-flighted OAuth refresh: concurrent
// resolvers for the same tenant share one in-flight refresh and its result.
func (s *Store) refreshTenant(ctx context.Context, tenant string, cred *Credential) (*Credential, error) {
	v, err, _ := s.sf.Do(tenant, func() (any, error) {
		newOAuth, err := s.refreshOAuth(ctx, cred)
		if err != nil {
			return nil, err
		}

		updated := *cred
		updated.OAuth = newOAuth

		if err := s.persist(&updated); err != nil {
			s.log.Warn("failed to persist refreshed credential", "tenant", tenant, "error", err)
		}

		s.mu.Lock()
		s.creds[tenant] = &updated
		s.mu.Unlock()
		s.registerSecrets(&updated)

		return &updated, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Credential), nil
}

// persist writes a tenant's credential back to disk atomically: the new
// content is written to a temp file in the same directory, then renamed
// over the original so a reader never observes a partial write.
func (s *Store) persist(cred *Credential) error {
	path, err := s.tenantPath(cred.Tenant)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(fromCredential(cred), "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".cred-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// ValidateClientAuth compares presented against the tenant's stored
// client-facing key using a constant-time comparison, so response timing
// cannot be used to guess the key byte by byte.
func (s *Store) ValidateClientAuth(tenant, presented string) error {
	s.mu.RLock()
	cred, ok := s.creds[tenant]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownTenant, tenant)
	}

	want := []byte(cred.ClientAuthKey)
	got := []byte(presented)
	if len(want) == 0 || len(want) != len(got) || subtle.ConstantTimeCompare(want, got) != 1 {
		return fmt.Errorf("%w: tenant %s", ErrForbidden, tenant)
	}
	return nil
}
