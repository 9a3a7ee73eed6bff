package usecase

import (
	accountdomain "pixeltrace/internal/account/domain"
	accountusecase "pixeltrace/internal/account/usecase"
	trackdomain "pixeltrace/internal/track/domain"
	trackdto "pixeltrace/internal/track/dto"
	"pixeltrace/internal/track/repository"
	"pixeltrace/pkg/fieldcrypt"
)

// resolver implements Resolver interface
type resolver struct {
	trackRepo repository.TrackRepository
	authUc    accountusecase.AuthUsecase
	crypter   *fieldcrypt.Crypter
}

// NewResolver creates a new instance of resolver. crypter may be nil
// (plaintext passthrough).
func NewResolver(trackRepo repository.TrackRepository, authUc accountusecase.AuthUsecase, crypter *fieldcrypt.Crypter) Resolver {
	return &resolver{
		trackRepo: trackRepo,
		authUc:    authUc,
		crypter:   crypter,
	}
}

// Read evaluates the query under the scoping precedence: owner identity,
// then explicit ids, then sender-only. Unscoped queries are rejected.
func (r *resolver) Read(caller *accountdomain.Account, query *trackdto.ReadQuery) (*trackdto.ItemsResponse, error) {
	page := query.Page
	if page < 1 {
		page = 1
	}
	limit := query.Limit
	if limit < 1 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}

	resp := &trackdto.ItemsResponse{Items: []trackdto.ItemView{}, Page: page, Limit: limit}

	scope := repository.Scope{}
	full := false
	switch {
	case query.OwnerIdentity != "":
		if caller == nil {
			return nil, ErrUnauthorized
		}
		if caller.ExternalID != query.OwnerIdentity {
			return nil, ErrForbidden
		}
		// The account row can lag behind a fresh sign-in; an empty page
		// is the defensive answer, never someone else's data.
		account, err := r.authUc.ResolveExternalID(query.OwnerIdentity)
		if err != nil {
			return nil, err
		}
		if account == nil {
			return resp, nil
		}
		scope.OwnerID = account.ID
		scope.SenderIdentity = query.SenderIdentity
		full = true

	case len(query.ExplicitIDs) > 0:
		// Knowing the id is itself the credential; no owner filter.
		// Projection stays reduced: id possession proves less than an
		// owner-scoped session does.
		scope.IDs = query.ExplicitIDs
		scope.SenderIdentity = query.SenderIdentity

	case query.SenderIdentity != "":
		// Broad anonymous listing must never surface claimed items.
		scope.SenderIdentity = query.SenderIdentity
		scope.UnownedOnly = true

	default:
		return nil, ErrQueryTooBroad
	}

	items, total, err := r.trackRepo.FindPage(scope, (page-1)*limit, limit)
	if err != nil {
		return nil, err
	}

	for i := range items {
		resp.Items = append(resp.Items, trackdto.NewItemView(&items[i], r.crypter, full))
	}
	resp.Total = total
	return resp, nil
}

func (r *resolver) Delete(caller *accountdomain.Account, query *trackdto.DeleteQuery) (int64, error) {
	if query.SenderIdentity == "" && query.OwnerIdentity == "" && len(query.ExplicitIDs) == 0 {
		return 0, ErrMissingFilter
	}

	if query.OwnerIdentity != "" {
		if caller == nil {
			return 0, ErrUnauthorized
		}
		if caller.ExternalID != query.OwnerIdentity {
			return 0, ErrForbidden
		}
	}

	if len(query.ExplicitIDs) > 0 {
		callerID := ""
		if caller != nil {
			callerID = caller.ID
		}
		deleted, foreign, err := r.trackRepo.DeleteByIDs(query.ExplicitIDs, callerID, query.SenderIdentity)
		if err != nil {
			return 0, err
		}
		if foreign > 0 {
			return 0, &ForbiddenOwnershipError{Count: int(foreign)}
		}
		return deleted, nil
	}

	scope := repository.Scope{SenderIdentity: query.SenderIdentity}
	if query.OwnerIdentity != "" {
		account, err := r.authUc.ResolveExternalID(query.OwnerIdentity)
		if err != nil {
			return 0, err
		}
		if account == nil {
			return 0, nil
		}
		scope.OwnerID = account.ID
	} else {
		scope.UnownedOnly = true
	}

	return r.trackRepo.DeleteByScope(scope)
}

// BatchLink claims the batch for the caller's account. All-or-nothing:
// one foreign-owned id rejects every item.
func (r *resolver) BatchLink(caller *accountdomain.Account, req *trackdto.LinkRequest) error {
	if caller == nil {
		return ErrUnauthorized
	}
	if req.AccountID != caller.ID {
		return ErrForbidden
	}
	if len(req.Items) == 0 || len(req.Items) > trackdto.MaxLinkBatch {
		return ErrMissingFilter
	}

	items := make([]trackdomain.TrackedItem, 0, len(req.Items))
	for _, in := range req.Items {
		items = append(items, trackdomain.TrackedItem{
			ID:             in.ID,
			SenderIdentity: in.SenderIdentity,
			Subject:        r.crypter.EncryptPtr(in.Subject),
			Recipient:      r.crypter.EncryptPtr(in.Recipient),
			CC:             r.crypter.EncryptPtr(in.CC),
			BCC:            r.crypter.EncryptPtr(in.BCC),
			BodyPreview:    r.crypter.EncryptPtr(in.BodyPreview),
		})
	}

	conflicts, err := r.trackRepo.LinkBatch(caller.ID, items)
	if err != nil {
		return err
	}
	if conflicts > 0 {
		return &OwnershipConflictError{Count: int(conflicts)}
	}
	return nil
}

// ConflictCheck reports whether any of the ids is already owned by an
// account other than the intended owner. Clients call this before a
// batch-link to prompt instead of failing destructively.
func (r *resolver) ConflictCheck(req *trackdto.ConflictCheckRequest) (bool, error) {
	account, err := r.authUc.ResolveExternalID(req.IntendedOwnerExternalID)
	if err != nil {
		return false, err
	}

	accountID := ""
	if account != nil {
		accountID = account.ID
	}
	count, err := r.trackRepo.CountOwnedByOther(req.IDs, accountID)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
