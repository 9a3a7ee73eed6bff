// Package identity drives the client's login/logout state machine and
// the conflict handling around identity changes.
package identity

import (
	"errors"
	"log"

	accountdto "pixeltrace/internal/account/dto"
	"pixeltrace/internal/client/localstore"
	synceng "pixeltrace/internal/client/sync"
	trackdto "pixeltrace/internal/track/dto"
)

type State string

const (
	StateAnonymous     State = "anonymous"
	StatePendingLogin  State = "pending-login"
	StateConflict      State = "conflict-detected"
	StateAuthenticated State = "authenticated"
)

var (
	// ErrNoConflict: a resolution was requested with no conflict pending.
	ErrNoConflict = errors.New("no identity conflict to resolve")
	// ErrConflictPending: login attempted again before resolving.
	ErrConflictPending = errors.New("identity conflict must be resolved first")
)

// RemoteAPI is the slice of the resolver API the workflow needs.
type RemoteAPI interface {
	SignIn(idToken string) (*accountdto.TokenResponse, error)
	ConflictCheck(ids []string, intendedOwnerExternalID string) (bool, error)
	BatchLink(accountID string, items []trackdto.LinkItem) error
	SetSession(accessToken string)
}

// LoginResult reports where a login attempt landed. When
// ConflictDetected is set no data was touched; the caller must resolve
// with ResolveWipe or ResolveKeep.
type LoginResult struct {
	State            State
	Session          *synceng.Session
	ConflictDetected bool
	// PreviousEmail is the identity local data is associated with.
	PreviousEmail string
	// NewEmail is the identity that just authenticated.
	NewEmail string
	// LinkSkipped is set when local records could not be claimed
	// because they are owned by another account remotely.
	LinkSkipped bool
}

// Workflow holds the current identity state for one client.
type Workflow struct {
	store  *localstore.Store
	remote RemoteAPI

	state       State
	session     *synceng.Session
	accessToken string

	// Sign-in response held while a conflict awaits resolution. The
	// session token is not installed until the user decides.
	stashed *accountdto.TokenResponse
}

func NewWorkflow(store *localstore.Store, remoteAPI RemoteAPI) *Workflow {
	return &Workflow{
		store:  store,
		remote: remoteAPI,
		state:  StateAnonymous,
	}
}

func (w *Workflow) State() State              { return w.state }
func (w *Workflow) Session() *synceng.Session { return w.session }

// AccessToken returns the session token installed by the last login.
func (w *Workflow) AccessToken() string { return w.accessToken }

// AdoptSession restores a previously persisted session, e.g. when a CLI
// process starts with stored credentials.
func (w *Workflow) AdoptSession(s *synceng.Session) {
	w.session = s
	if s != nil {
		w.state = StateAuthenticated
	}
}

// Login verifies the token remotely and, when the authenticated email
// differs from the one local data was last associated with, halts in
// the conflict state instead of merging or deleting anything.
func (w *Workflow) Login(idToken string) (*LoginResult, error) {
	if w.state == StateConflict {
		return nil, ErrConflictPending
	}
	w.state = StatePendingLogin

	resp, err := w.remote.SignIn(idToken)
	if err != nil {
		w.state = StateAnonymous
		return nil, err
	}

	lastEmail, err := w.store.GetMeta(localstore.MetaLastLoggedInEmail)
	if err != nil {
		w.state = StateAnonymous
		return nil, err
	}

	records, err := w.store.GetAll()
	if err != nil {
		w.state = StateAnonymous
		return nil, err
	}

	if lastEmail != "" && lastEmail != resp.Account.Email && len(records) > 0 {
		w.state = StateConflict
		w.stashed = resp
		return &LoginResult{
			State:            StateConflict,
			ConflictDetected: true,
			PreviousEmail:    lastEmail,
			NewEmail:         resp.Account.Email,
		}, nil
	}

	return w.completeLogin(resp, records)
}

// ResolveWipe discards all local data and the identity marker, then
// finishes the stashed login with a clean slate.
func (w *Workflow) ResolveWipe() (*LoginResult, error) {
	if w.state != StateConflict || w.stashed == nil {
		return nil, ErrNoConflict
	}

	if err := w.store.Clear(); err != nil {
		return nil, err
	}
	if err := w.store.DeleteMeta(localstore.MetaLastLoggedInEmail); err != nil {
		return nil, err
	}

	resp := w.stashed
	w.stashed = nil
	return w.completeLogin(resp, nil)
}

// ResolveKeep keeps unsynced local records for the new identity. Synced
// records are dropped (they are cloud-linked to the old account and
// must not be re-uploaded under the new one); the retained rows are
// re-tagged to the new email so per-identity filtering still shows
// them, then claimed server-side.
func (w *Workflow) ResolveKeep() (*LoginResult, error) {
	if w.state != StateConflict || w.stashed == nil {
		return nil, ErrNoConflict
	}

	if err := w.store.RemoveSynced(); err != nil {
		return nil, err
	}
	if err := w.store.RetagOwnerHints(w.stashed.Account.Email); err != nil {
		return nil, err
	}

	records, err := w.store.GetAll()
	if err != nil {
		return nil, err
	}

	resp := w.stashed
	w.stashed = nil
	return w.completeLogin(resp, records)
}

// Logout ends the session. keepData retains local records and persists
// the outgoing email as the current-user hint so anonymous-mode
// filtering keeps showing them; otherwise records and the last-login
// marker are cleared together, never one without the other.
func (w *Workflow) Logout(keepData bool) error {
	outgoing := ""
	if w.session != nil {
		outgoing = w.session.Email
	}

	if keepData {
		if outgoing != "" {
			if err := w.store.SetMeta(localstore.MetaCurrentUser, outgoing); err != nil {
				return err
			}
		}
	} else {
		if err := w.store.Clear(); err != nil {
			return err
		}
		if err := w.store.DeleteMeta(localstore.MetaLastLoggedInEmail); err != nil {
			return err
		}
		if err := w.store.DeleteMeta(localstore.MetaCurrentUser); err != nil {
			return err
		}
	}

	w.remote.SetSession("")
	w.accessToken = ""
	w.session = nil
	w.state = StateAnonymous
	return nil
}

// completeLogin installs the session, persists identity markers and
// promotes locally-held records to cloud ownership.
func (w *Workflow) completeLogin(resp *accountdto.TokenResponse, records []localstore.LocalRecord) (*LoginResult, error) {
	w.remote.SetSession(resp.AccessToken)
	w.accessToken = resp.AccessToken
	if err := w.store.SetMeta(localstore.MetaLastLoggedInEmail, resp.Account.Email); err != nil {
		return nil, err
	}
	if err := w.store.SetMeta(localstore.MetaCurrentUser, resp.Account.Email); err != nil {
		return nil, err
	}

	w.session = &synceng.Session{
		AccountID:  resp.Account.ID,
		ExternalID: resp.Account.ExternalID,
		Email:      resp.Account.Email,
	}
	w.state = StateAuthenticated

	result := &LoginResult{
		State:    StateAuthenticated,
		Session:  w.session,
		NewEmail: resp.Account.Email,
	}

	if len(records) == 0 {
		return result, nil
	}

	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
	}

	conflict, err := w.remote.ConflictCheck(ids, resp.Account.ExternalID)
	if err != nil {
		log.Printf("[WARN] identity: conflict check failed, skipping claim: %v", err)
		result.LinkSkipped = true
		return result, nil
	}
	if conflict {
		// Another account owns some of these remotely; claiming would
		// be rejected wholesale, so leave them local-only for now.
		result.LinkSkipped = true
		return result, nil
	}

	items := make([]trackdto.LinkItem, 0, len(records))
	for _, rec := range records {
		item := trackdto.LinkItem{ID: rec.ID, SenderIdentity: rec.SenderIdentity}
		if rec.Subject != "" {
			subject := rec.Subject
			item.Subject = &subject
		}
		if rec.Recipient != "" {
			recipient := rec.Recipient
			item.Recipient = &recipient
		}
		items = append(items, item)
	}
	if err := w.remote.BatchLink(resp.Account.ID, items); err != nil {
		log.Printf("[WARN] identity: batch link failed: %v", err)
		result.LinkSkipped = true
	}

	return result, nil
}
