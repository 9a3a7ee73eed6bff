package usecase

import (
	accountdomain "pixeltrace/internal/account/domain"
	trackdto "pixeltrace/internal/track/dto"
)

// Recorder ingests pixel fetches. It never reports failure to its
// caller: the pixel response must not depend on recording succeeding.
type Recorder interface {
	RecordOpen(trackID, sourceIP, userAgent, quoted string)
}

// Resolver answers ownership-scoped queries over tracked items. The
// caller identity is nil for anonymous requests.
type Resolver interface {
	Read(caller *accountdomain.Account, query *trackdto.ReadQuery) (*trackdto.ItemsResponse, error)
	Delete(caller *accountdomain.Account, query *trackdto.DeleteQuery) (int64, error)
	BatchLink(caller *accountdomain.Account, req *trackdto.LinkRequest) error
	ConflictCheck(req *trackdto.ConflictCheckRequest) (bool, error)
}
