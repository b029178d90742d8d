package models

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mmdatafocus/prognosis_backend/utils"
	"gorm.io/gorm"
)

// Materialized path trees (budget articles, departments).
//
// Each node stores Path: the concatenation of fixed-width base-36 segments from
// the root down ("0001", "00010003", ...), its Depth (root = 1) and NumChild.
// Ancestors are the prefixes of a path; descendants share its prefix.

const (
	treeStepLen   = 4
	treeAlphabet  = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	treeMaxPath   = 255
	treeMaxInsert = 3
)

var ErrTreeFull = errors.New("tree level is full")

type treeNode interface {
	GetTenantId() string
	GetId() int
	GetPath() string
	GetDepth() int
	setTreePosition(path string, depth int)
}

type treeRecord[T any] interface {
	*T
	treeNode
}

func encodeTreeSegment(n int) (string, error) {
	base := len(treeAlphabet)
	limit := 1
	for i := 0; i < treeStepLen; i++ {
		limit *= base
	}
	if n <= 0 || n >= limit {
		return "", fmt.Errorf("%w: segment %d", ErrTreeFull, n)
	}
	buf := make([]byte, treeStepLen)
	for i := treeStepLen - 1; i >= 0; i-- {
		buf[i] = treeAlphabet[n%base]
		n /= base
	}
	return string(buf), nil
}

func decodeTreeSegment(s string) (int, error) {
	if len(s) != treeStepLen {
		return 0, fmt.Errorf("invalid tree segment %q", s)
	}
	n := 0
	for _, r := range s {
		idx := strings.IndexRune(treeAlphabet, r)
		if idx < 0 {
			return 0, fmt.Errorf("invalid tree segment %q", s)
		}
		n = n*len(treeAlphabet) + idx
	}
	return n, nil
}

// nextTreePath returns the path of the next sibling after lastChild under parentPath.
// lastChild == "" means the parent has no children yet.
func nextTreePath(parentPath string, lastChild string) (string, error) {
	next := 1
	if lastChild != "" {
		seg, err := decodeTreeSegment(lastChild[len(lastChild)-treeStepLen:])
		if err != nil {
			return "", err
		}
		next = seg + 1
	}
	enc, err := encodeTreeSegment(next)
	if err != nil {
		return "", err
	}
	path := parentPath + enc
	if len(path) > treeMaxPath {
		return "", fmt.Errorf("%w: max depth reached", ErrTreeFull)
	}
	return path, nil
}

// ancestorPaths lists the proper prefixes of path, root first.
func ancestorPaths(path string) []string {
	var out []string
	for end := treeStepLen; end < len(path); end += treeStepLen {
		out = append(out, path[:end])
	}
	return out
}

func lastChildPath[T any](tx *gorm.DB, tenantId string, parentPath string, depth int) (string, error) {
	var paths []string
	q := tx.Model(new(T)).Where("tenant_id = ? AND depth = ?", tenantId, depth)
	if parentPath != "" {
		q = q.Where("path LIKE ?", parentPath+"%")
	}
	if err := q.Order("path DESC").Limit(1).Pluck("path", &paths).Error; err != nil {
		return "", err
	}
	if len(paths) == 0 {
		return "", nil
	}
	return paths[0], nil
}

// insertTreeNode places node as the last child of parentId (or as the last root)
// and inserts it. The parent row is locked for the duration of tx; the unique
// (tenant_id, path) index catches racing root inserts, which are retried.
func insertTreeNode[T any, PT treeRecord[T]](tx *gorm.DB, tenantId string, parentId *int, node PT) error {
	parentPath := ""
	depth := 1
	if parentId != nil {
		parent, err := utils.FetchModelForUpdate[T](tx, tenantId, *parentId)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				return fmt.Errorf("%w: parent %d", ErrCrossTenantReference, *parentId)
			}
			return err
		}
		parentPath = PT(parent).GetPath()
		depth = PT(parent).GetDepth() + 1
	}

	var lastErr error
	for attempt := 0; attempt < treeMaxInsert; attempt++ {
		last, err := lastChildPath[T](tx, tenantId, parentPath, depth)
		if err != nil {
			return err
		}
		path, err := nextTreePath(parentPath, last)
		if err != nil {
			return err
		}
		node.setTreePosition(path, depth)

		lastErr = tx.Transaction(func(sp *gorm.DB) error {
			return sp.Create(node).Error
		})
		if lastErr == nil {
			break
		}
		if !IsDuplicateKeyError(lastErr) {
			return lastErr
		}
	}
	if lastErr != nil {
		return lastErr
	}

	if parentId != nil {
		return tx.Model(new(T)).
			Where("tenant_id = ? AND id = ?", tenantId, *parentId).
			UpdateColumn("num_child", gorm.Expr("num_child + 1")).Error
	}
	return nil
}

// Ancestors returns the chain from the root down to the node's parent.
func Ancestors[T any, PT treeRecord[T]](ctx context.Context, tenantId string, id int) ([]*T, error) {
	db := dbFor(ctx)
	node, err := utils.FetchModel[T](db, tenantId, id)
	if err != nil {
		return nil, err
	}
	paths := ancestorPaths(PT(node).GetPath())
	results := make([]*T, 0, len(paths))
	if len(paths) == 0 {
		return results, nil
	}
	err = db.Where("tenant_id = ? AND path IN ?", tenantId, paths).Order("depth ASC").Find(&results).Error
	return results, err
}

// Descendants returns the whole subtree below the node in path order.
func Descendants[T any, PT treeRecord[T]](ctx context.Context, tenantId string, id int) ([]*T, error) {
	db := dbFor(ctx)
	node, err := utils.FetchModel[T](db, tenantId, id)
	if err != nil {
		return nil, err
	}
	var results []*T
	err = db.Where("tenant_id = ? AND path LIKE ? AND depth > ?", tenantId, PT(node).GetPath()+"%", PT(node).GetDepth()).
		Order("path ASC").Find(&results).Error
	return results, err
}

func Children[T any, PT treeRecord[T]](ctx context.Context, tenantId string, id int) ([]*T, error) {
	db := dbFor(ctx)
	node, err := utils.FetchModel[T](db, tenantId, id)
	if err != nil {
		return nil, err
	}
	var results []*T
	err = db.Where("tenant_id = ? AND path LIKE ? AND depth = ?", tenantId, PT(node).GetPath()+"%", PT(node).GetDepth()+1).
		Order("path ASC").Find(&results).Error
	return results, err
}

// Parent returns nil for a root.
func Parent[T any, PT treeRecord[T]](ctx context.Context, tenantId string, id int) (*T, error) {
	db := dbFor(ctx)
	node, err := utils.FetchModel[T](db, tenantId, id)
	if err != nil {
		return nil, err
	}
	path := PT(node).GetPath()
	if len(path) <= treeStepLen {
		return nil, nil
	}
	var parent T
	err = db.Where("tenant_id = ? AND path = ?", tenantId, path[:len(path)-treeStepLen]).First(&parent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &parent, nil
}

func Roots[T any](ctx context.Context, tenantId string) ([]*T, error) {
	var results []*T
	err := dbFor(ctx).Where("tenant_id = ? AND depth = 1", tenantId).Order("path ASC").Find(&results).Error
	return results, err
}

// lockTreeTenant serialises root inserts across processes when redis is available.
func lockTreeTenant(ctx context.Context, tenantId string, kind string) (func(), error) {
	return utils.TenantLock(ctx, tenantId, "tree:"+kind, "models", "lockTreeTenant")
}
