package coa

import (
	"context"
	"fmt"

	"github.com/daftar-erp/daftar-erp/internal/shared"
)

// Service coordinates catalogue mutations and their invariants.
type Service struct {
	repo RepositoryPort
}

// NewService constructs the catalogue service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// NodeInput groups fields for creating or updating a node.
type NodeInput struct {
	ParentID *int64
	Code     string
	Title    string
	Kind     NodeKind
	IsActive bool
	Nature   *Nature
}

func (in NodeInput) validate() error {
	if in.Code == "" {
		return shared.Validation("coa: node code required")
	}
	if in.Title == "" {
		return shared.Validation("coa: node title required")
	}
	if _, ok := parentKind(in.Kind); !ok {
		return shared.Validation(fmt.Sprintf("coa: unknown node kind %q", in.Kind))
	}
	return nil
}

// checkParentRule validates the hierarchy relationship for the next state.
func checkParentRule(ctx context.Context, tx TxRepository, kind NodeKind, parentID *int64) error {
	required, _ := parentKind(kind)
	if required == "" {
		if parentID != nil {
			return ErrInvalidParent
		}
		return nil
	}
	if parentID == nil {
		return ErrInvalidParent
	}
	parent, err := tx.GetNode(ctx, *parentID)
	if err != nil {
		return err
	}
	if parent.Kind != required {
		return ErrInvalidParent
	}
	return nil
}

// CreateNode inserts a hierarchy node after validating the parent rule and
// global code uniqueness.
func (s *Service) CreateNode(ctx context.Context, input NodeInput) (CodeNode, error) {
	if err := input.validate(); err != nil {
		return CodeNode{}, err
	}
	var node CodeNode
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := checkParentRule(ctx, tx, input.Kind, input.ParentID); err != nil {
			return err
		}
		taken, err := tx.CodeInUse(ctx, input.Code, 0)
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicateCode
		}
		node = CodeNode{
			ParentID: input.ParentID,
			Code:     input.Code,
			Title:    input.Title,
			Kind:     input.Kind,
			IsActive: input.IsActive,
			Nature:   input.Nature,
		}
		id, err := tx.InsertNode(ctx, node)
		if err != nil {
			return err
		}
		node.ID = id
		return nil
	})
	if err != nil {
		return CodeNode{}, err
	}
	return node, nil
}

// UpdateNode revalidates the relationship rule against the next state.
// The node kind is immutable once created.
func (s *Service) UpdateNode(ctx context.Context, id int64, input NodeInput) (CodeNode, error) {
	if err := input.validate(); err != nil {
		return CodeNode{}, err
	}
	var node CodeNode
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetNode(ctx, id)
		if err != nil {
			return err
		}
		if input.Kind != current.Kind {
			return shared.Validation("coa: node kind cannot change")
		}
		if err := checkParentRule(ctx, tx, current.Kind, input.ParentID); err != nil {
			return err
		}
		taken, err := tx.CodeInUse(ctx, input.Code, id)
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicateCode
		}
		current.ParentID = input.ParentID
		current.Code = input.Code
		current.Title = input.Title
		current.IsActive = input.IsActive
		current.Nature = input.Nature
		if err := tx.UpdateNode(ctx, current); err != nil {
			return err
		}
		node = current
		return nil
	})
	if err != nil {
		return CodeNode{}, err
	}
	return node, nil
}

// DeleteNode refuses to cascade: descendants and references block deletion.
func (s *Service) DeleteNode(ctx context.Context, id int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetNode(ctx, id); err != nil {
			return err
		}
		children, err := tx.HasChildren(ctx, id)
		if err != nil {
			return err
		}
		if children {
			return ErrHasChildren
		}
		referenced, err := tx.NodeReferenced(ctx, id)
		if err != nil {
			return err
		}
		if referenced {
			return ErrNodeReferenced
		}
		return tx.DeleteNode(ctx, id)
	})
}

// CreateDetail inserts a user-defined catalogue entry.
func (s *Service) CreateDetail(ctx context.Context, code, title string) (Detail, error) {
	if !ValidDetailCode(code) {
		return Detail{}, ErrInvalidDetailCode
	}
	if title == "" {
		return Detail{}, shared.Validation("coa: detail title required")
	}
	var detail Detail
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		taken, err := tx.DetailCodeInUse(ctx, code, 0)
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicateCode
		}
		detail = Detail{Code: code, Title: title, Kind: DetailKindUser, IsActive: true}
		id, err := tx.InsertDetail(ctx, detail)
		if err != nil {
			return err
		}
		detail.ID = id
		return nil
	})
	if err != nil {
		return Detail{}, err
	}
	return detail, nil
}

// UpdateDetail edits a user-defined detail. System-managed rows belong to
// the treasury subsystem and reject the generic API.
func (s *Service) UpdateDetail(ctx context.Context, id int64, code, title string, isActive bool) (Detail, error) {
	if !ValidDetailCode(code) {
		return Detail{}, ErrInvalidDetailCode
	}
	var detail Detail
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetDetail(ctx, id)
		if err != nil {
			return err
		}
		if current.Kind == DetailKindSystem {
			return ErrSystemManaged
		}
		taken, err := tx.DetailCodeInUse(ctx, code, id)
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicateCode
		}
		current.Code = code
		current.Title = title
		current.IsActive = isActive
		if err := tx.UpdateDetail(ctx, current); err != nil {
			return err
		}
		detail = current
		return nil
	})
	if err != nil {
		return Detail{}, err
	}
	return detail, nil
}

// DeleteDetail removes an unreferenced user-defined detail.
func (s *Service) DeleteDetail(ctx context.Context, id int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetDetail(ctx, id)
		if err != nil {
			return err
		}
		if current.Kind == DetailKindSystem {
			return ErrSystemManaged
		}
		referenced, err := tx.DetailReferenced(ctx, id)
		if err != nil {
			return err
		}
		if referenced {
			return ErrDetailReferenced
		}
		return tx.DeleteDetail(ctx, id)
	})
}

// SuggestNextDetailCode returns the smallest unused four-digit code.
// A linear scan is fine at this data scale.
func (s *Service) SuggestNextDetailCode(ctx context.Context) (string, error) {
	var suggestion string
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		used, err := tx.UsedDetailCodes(ctx)
		if err != nil {
			return err
		}
		taken := make(map[string]struct{}, len(used))
		for _, code := range used {
			taken[code] = struct{}{}
		}
		for n := 1; n <= 9999; n++ {
			candidate := fmt.Sprintf("%04d", n)
			if _, ok := taken[candidate]; !ok {
				suggestion = candidate
				return nil
			}
		}
		return ErrNoCodesAvailable
	})
	if err != nil {
		return "", err
	}
	return suggestion, nil
}

// LinkDetail attaches a detail to a leaf hierarchy node.
func (s *Service) LinkDetail(ctx context.Context, detailID, nodeID int64, isPrimary bool, position int) (DetailLink, error) {
	var link DetailLink
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetDetail(ctx, detailID); err != nil {
			return err
		}
		if _, err := tx.GetNode(ctx, nodeID); err != nil {
			return err
		}
		children, err := tx.HasChildren(ctx, nodeID)
		if err != nil {
			return err
		}
		if children {
			return ErrMustBeLeaf
		}
		link = DetailLink{DetailID: detailID, NodeID: nodeID, IsPrimary: isPrimary, Position: position}
		id, err := tx.InsertLink(ctx, link)
		if err != nil {
			return err
		}
		link.ID = id
		return nil
	})
	if err != nil {
		return DetailLink{}, err
	}
	return link, nil
}

// UnlinkDetail removes an existing link.
func (s *Service) UnlinkDetail(ctx context.Context, detailID, nodeID int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.DeleteLink(ctx, detailID, nodeID)
	})
}

// ListLinks returns the links of a detail.
func (s *Service) ListLinks(ctx context.Context, detailID int64) ([]DetailLink, error) {
	var links []DetailLink
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		links, err = tx.LinksForDetail(ctx, detailID)
		return err
	})
	return links, err
}

// GetNode fetches a single node.
func (s *Service) GetNode(ctx context.Context, id int64) (CodeNode, error) {
	return s.repo.GetNode(ctx, id)
}

// ListNodes lists nodes by filter.
func (s *Service) ListNodes(ctx context.Context, filter NodeFilter) ([]CodeNode, int, error) {
	return s.repo.ListNodes(ctx, filter)
}

// GetDetail fetches a single detail.
func (s *Service) GetDetail(ctx context.Context, id int64) (Detail, error) {
	return s.repo.GetDetail(ctx, id)
}

// ListDetails lists details by filter.
func (s *Service) ListDetails(ctx context.Context, filter DetailFilter) ([]Detail, int, error) {
	return s.repo.ListDetails(ctx, filter)
}
