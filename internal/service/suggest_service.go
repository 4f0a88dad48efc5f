package service

import (
	"context"
	"errors"

	"github.com/ikimina/momoledger/internal/match"
	"github.com/ikimina/momoledger/internal/models"
	"github.com/ikimina/momoledger/internal/storage"
)

// SuggestService proposes a likely member for an unallocated transaction via
// a phone-hash lookup against the institution's member directory. Purely
// advisory: it never mutates state and never blocks allocation.
type SuggestService struct {
	store storage.Store
}

// NewSuggestService creates a SuggestService with the given storage backend.
func NewSuggestService(store storage.Store) *SuggestService {
	return &SuggestService{store: store}
}

// Suggest returns at most one candidate member for the transaction, or
// (nil, nil) when the transaction has no payer phone or no member matches.
func (s *SuggestService) Suggest(ctx context.Context, scope models.Scope, txID string) (*models.SuggestedMatch, error) {
	if txID == "" {
		return nil, validationErr("transaction_id", "required")
	}

	tx, err := s.store.GetTransaction(ctx, scope, txID)
	if err != nil {
		return nil, err
	}
	if tx.PayerPhone == "" {
		return nil, nil
	}

	member, err := s.store.FindMemberByPhoneHash(ctx, tx.InstitutionID, match.PhoneHash(tx.PayerPhone))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	suggestion := &models.SuggestedMatch{
		MemberID:       member.ID,
		MemberName:     member.Name,
		MemberPhone:    member.Phone,
		GroupID:        member.GroupID,
		BalanceMinor:   member.BalanceMinor,
		NameSimilarity: match.NameSimilarity(tx.PayerName, member.Name),
	}

	if member.GroupID != "" {
		group, err := s.store.GetGroup(ctx, scope, member.GroupID)
		if err == nil {
			suggestion.GroupName = group.Name
		}
	}

	return suggestion, nil
}
