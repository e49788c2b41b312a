package coa

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

type memCatalog struct {
	nodes      map[int64]*CodeNode
	details    map[int64]*Detail
	links      map[int64]*DetailLink
	referenced map[int64]bool
	nextID     int64
}

func newMemCatalog() *memCatalog {
	return &memCatalog{
		nodes:      map[int64]*CodeNode{},
		details:    map[int64]*Detail{},
		links:      map[int64]*DetailLink{},
		referenced: map[int64]bool{},
	}
}

func (m *memCatalog) addNode(node CodeNode) int64 {
	m.nextID++
	node.ID = m.nextID
	m.nodes[node.ID] = &node
	return node.ID
}

func (m *memCatalog) addDetail(detail Detail) int64 {
	m.nextID++
	detail.ID = m.nextID
	m.details[detail.ID] = &detail
	return detail.ID
}

func (m *memCatalog) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memCatalog) GetNode(ctx context.Context, id int64) (CodeNode, error) {
	if n, ok := m.nodes[id]; ok {
		return *n, nil
	}
	return CodeNode{}, ErrNodeNotFound
}

func (m *memCatalog) ListNodes(ctx context.Context, filter NodeFilter) ([]CodeNode, int, error) {
	return nil, 0, nil
}

func (m *memCatalog) CodeInUse(ctx context.Context, code string, excludeID int64) (bool, error) {
	for _, n := range m.nodes {
		if n.Code == code && n.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memCatalog) InsertNode(ctx context.Context, node CodeNode) (int64, error) {
	return m.addNode(node), nil
}

func (m *memCatalog) UpdateNode(ctx context.Context, node CodeNode) error {
	if _, ok := m.nodes[node.ID]; !ok {
		return ErrNodeNotFound
	}
	m.nodes[node.ID] = &node
	return nil
}

func (m *memCatalog) DeleteNode(ctx context.Context, id int64) error {
	delete(m.nodes, id)
	return nil
}

func (m *memCatalog) HasChildren(ctx context.Context, id int64) (bool, error) {
	for _, n := range m.nodes {
		if n.ParentID != nil && *n.ParentID == id {
			return true, nil
		}
	}
	return false, nil
}

func (m *memCatalog) NodeReferenced(ctx context.Context, id int64) (bool, error) {
	return m.referenced[id], nil
}

func (m *memCatalog) GetDetail(ctx context.Context, id int64) (Detail, error) {
	if d, ok := m.details[id]; ok {
		return *d, nil
	}
	return Detail{}, ErrDetailNotFound
}

func (m *memCatalog) ListDetails(ctx context.Context, filter DetailFilter) ([]Detail, int, error) {
	return nil, 0, nil
}

func (m *memCatalog) DetailCodeInUse(ctx context.Context, code string, excludeID int64) (bool, error) {
	for _, d := range m.details {
		if d.Code == code && d.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memCatalog) InsertDetail(ctx context.Context, detail Detail) (int64, error) {
	return m.addDetail(detail), nil
}

func (m *memCatalog) UpdateDetail(ctx context.Context, detail Detail) error {
	m.details[detail.ID] = &detail
	return nil
}

func (m *memCatalog) DeleteDetail(ctx context.Context, id int64) error {
	delete(m.details, id)
	return nil
}

func (m *memCatalog) DetailReferenced(ctx context.Context, id int64) (bool, error) {
	return m.referenced[id], nil
}

func (m *memCatalog) UsedDetailCodes(ctx context.Context) ([]string, error) {
	codes := make([]string, 0, len(m.details))
	for _, d := range m.details {
		codes = append(codes, d.Code)
	}
	return codes, nil
}

func (m *memCatalog) InsertLink(ctx context.Context, link DetailLink) (int64, error) {
	m.nextID++
	link.ID = m.nextID
	m.links[link.ID] = &link
	return link.ID, nil
}

func (m *memCatalog) DeleteLink(ctx context.Context, detailID, nodeID int64) error {
	for id, l := range m.links {
		if l.DetailID == detailID && l.NodeID == nodeID {
			delete(m.links, id)
			return nil
		}
	}
	return ErrDetailNotFound
}

func (m *memCatalog) LinksForDetail(ctx context.Context, detailID int64) ([]DetailLink, error) {
	var out []DetailLink
	for _, l := range m.links {
		if l.DetailID == detailID {
			out = append(out, *l)
		}
	}
	return out, nil
}

func TestCreateNodeParentRule(t *testing.T) {
	repo := newMemCatalog()
	groupID := repo.addNode(CodeNode{Code: "1", Title: "Assets", Kind: NodeKindGroup})
	svc := NewService(repo)
	ctx := context.Background()

	general, err := svc.CreateNode(ctx, NodeInput{ParentID: &groupID, Code: "11", Title: "Current", Kind: NodeKindGeneral, IsActive: true})
	if err != nil {
		t.Fatalf("create general: %v", err)
	}

	// A specific node must hang below a general, not below a group.
	if _, err := svc.CreateNode(ctx, NodeInput{ParentID: &groupID, Code: "111", Title: "Cash", Kind: NodeKindSpecific, IsActive: true}); !errors.Is(err, ErrInvalidParent) {
		t.Fatalf("err = %v, want ErrInvalidParent", err)
	}
	if _, err := svc.CreateNode(ctx, NodeInput{ParentID: &general.ID, Code: "111", Title: "Cash", Kind: NodeKindSpecific, IsActive: true}); err != nil {
		t.Fatalf("create specific: %v", err)
	}

	// Groups are roots.
	if _, err := svc.CreateNode(ctx, NodeInput{ParentID: &general.ID, Code: "2", Title: "Liabilities", Kind: NodeKindGroup, IsActive: true}); !errors.Is(err, ErrInvalidParent) {
		t.Fatalf("err = %v, want ErrInvalidParent", err)
	}
}

func TestCreateNodeRejectsDuplicateCode(t *testing.T) {
	repo := newMemCatalog()
	repo.addNode(CodeNode{Code: "1", Title: "Assets", Kind: NodeKindGroup})
	svc := NewService(repo)

	_, err := svc.CreateNode(context.Background(), NodeInput{Code: "1", Title: "Other", Kind: NodeKindGroup, IsActive: true})
	if !errors.Is(err, ErrDuplicateCode) {
		t.Fatalf("err = %v, want ErrDuplicateCode", err)
	}
}

func TestDeleteNodeGuards(t *testing.T) {
	repo := newMemCatalog()
	groupID := repo.addNode(CodeNode{Code: "1", Title: "Assets", Kind: NodeKindGroup})
	generalID := repo.addNode(CodeNode{ParentID: &groupID, Code: "11", Title: "Current", Kind: NodeKindGeneral})
	svc := NewService(repo)
	ctx := context.Background()

	if err := svc.DeleteNode(ctx, groupID); !errors.Is(err, ErrHasChildren) {
		t.Fatalf("err = %v, want ErrHasChildren", err)
	}

	repo.referenced[generalID] = true
	if err := svc.DeleteNode(ctx, generalID); !errors.Is(err, ErrNodeReferenced) {
		t.Fatalf("err = %v, want ErrNodeReferenced", err)
	}

	repo.referenced[generalID] = false
	if err := svc.DeleteNode(ctx, generalID); err != nil {
		t.Fatalf("delete: %v", err)
	}
}

func TestLinkDetailRequiresLeaf(t *testing.T) {
	repo := newMemCatalog()
	groupID := repo.addNode(CodeNode{Code: "1", Title: "Assets", Kind: NodeKindGroup})
	generalID := repo.addNode(CodeNode{ParentID: &groupID, Code: "11", Title: "Current", Kind: NodeKindGeneral})
	specificID := repo.addNode(CodeNode{ParentID: &generalID, Code: "111", Title: "Cash", Kind: NodeKindSpecific})
	detailID := repo.addDetail(Detail{Code: "0001", Title: "Main", Kind: DetailKindUser})
	svc := NewService(repo)
	ctx := context.Background()

	if _, err := svc.LinkDetail(ctx, detailID, generalID, true, 0); !errors.Is(err, ErrMustBeLeaf) {
		t.Fatalf("err = %v, want ErrMustBeLeaf", err)
	}
	if _, err := svc.LinkDetail(ctx, detailID, specificID, true, 0); err != nil {
		t.Fatalf("link: %v", err)
	}
}

func TestDetailCodeValidation(t *testing.T) {
	svc := NewService(newMemCatalog())
	ctx := context.Background()

	for _, code := range []string{"12", "12345", "12a4", ""} {
		if _, err := svc.CreateDetail(ctx, code, "X"); !errors.Is(err, ErrInvalidDetailCode) {
			t.Fatalf("code %q: err = %v, want ErrInvalidDetailCode", code, err)
		}
	}
	if _, err := svc.CreateDetail(ctx, "0042", "X"); err != nil {
		t.Fatalf("create: %v", err)
	}
}

func TestSystemDetailsRejectGenericAPI(t *testing.T) {
	repo := newMemCatalog()
	id := repo.addDetail(Detail{Code: "1201", Title: "Handler", Kind: DetailKindSystem})
	svc := NewService(repo)
	ctx := context.Background()

	if _, err := svc.UpdateDetail(ctx, id, "1201", "Renamed", true); !errors.Is(err, ErrSystemManaged) {
		t.Fatalf("err = %v, want ErrSystemManaged", err)
	}
	if err := svc.DeleteDetail(ctx, id); !errors.Is(err, ErrSystemManaged) {
		t.Fatalf("err = %v, want ErrSystemManaged", err)
	}
}

func TestSuggestNextDetailCode(t *testing.T) {
	repo := newMemCatalog()
	repo.addDetail(Detail{Code: "0001", Kind: DetailKindUser})
	repo.addDetail(Detail{Code: "0002", Kind: DetailKindUser})
	repo.addDetail(Detail{Code: "0004", Kind: DetailKindUser})
	svc := NewService(repo)

	code, err := svc.SuggestNextDetailCode(context.Background())
	if err != nil {
		t.Fatalf("suggest: %v", err)
	}
	if code != "0003" {
		t.Fatalf("code = %q, want 0003", code)
	}
}

func TestSuggestNextDetailCodeExhausted(t *testing.T) {
	repo := newMemCatalog()
	for n := 1; n <= 9999; n++ {
		repo.addDetail(Detail{Code: fmt.Sprintf("%04d", n), Kind: DetailKindUser})
	}
	svc := NewService(repo)

	if _, err := svc.SuggestNextDetailCode(context.Background()); !errors.Is(err, ErrNoCodesAvailable) {
		t.Fatalf("err = %v, want ErrNoCodesAvailable", err)
	}
}
