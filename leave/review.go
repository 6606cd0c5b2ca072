package leave

import (
	"context"

	"go.uber.org/zap"
)

// ReviewService moves Pending requests to a terminal status on behalf of a
// station administrator. It never touches balances. Rejecting a request does
// not give back the days deducted when it was created; they stay off the
// stored record. Reconcile merely stops subtracting the request a second time.
type ReviewService struct {
	store  RequestStore
	clock  Clock
	logger *zap.Logger
}

func NewReviewService(store RequestStore, opts ...Option) *ReviewService {
	o := buildOptions("leave.review", opts)
	return &ReviewService{store: store, clock: o.clock, logger: o.logger}
}

func (s *ReviewService) Approve(ctx context.Context, requestID, reviewerID, note string) (*LeaveRequest, error) {
	return s.decide(ctx, requestID, reviewerID, note, StatusApproved)
}

func (s *ReviewService) Reject(ctx context.Context, requestID, reviewerID, note string) (*LeaveRequest, error) {
	return s.decide(ctx, requestID, reviewerID, note, StatusRejected)
}

func (s *ReviewService) decide(ctx context.Context, requestID, reviewerID, note string, to Status) (*LeaveRequest, error) {
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, persistErr("get request", err)
	}
	if req == nil {
		return nil, &NotFoundError{Kind: "request", ID: requestID}
	}
	if !req.Status.Mutable() {
		return nil, &InvalidStateError{RequestID: requestID, Status: req.Status, Op: "review"}
	}

	req.Status = to
	req.ReviewedBy = reviewerID
	req.ReviewNote = note
	req.UpdatedAt = s.clock.Now()
	if err := s.store.UpdateRequest(ctx, *req); err != nil {
		return nil, persistErr("update request", err)
	}

	s.logger.Info("leave reviewed",
		zap.String("request_id", requestID),
		zap.String("status", string(to)),
		zap.String("reviewer", reviewerID),
	)
	return req, nil
}
