package defaults

import (
	"fmt"
	"strings"

	"github.com/codewandler/entstore/core/encoding"
	"github.com/codewandler/entstore/core/es"
)

// CacheID is the id of every cache key of the defaults store.
const CacheID = "defaults"

// Schemas describes the registered entity types. registry.Registry
// implements it.
type Schemas interface {
	SplitSubType(entityType string, segments []string) (subtype, rest []string)
	SubTypes(entityType string, subtype []string) [][]string
	KeyPathAlias(segment string) (encoding.KeyPathAlias, bool)
	DefaultTree(entityType string, subtype []string) (map[string]any, error)
}

// Path is a parsed defaults identifier: an entity type, the registered
// subtype below it and the key path inside the entity the defaults apply to.
//
//	providers                  -> providers, [], []
//	providers/sql              -> providers, [sql], []
//	providers/sql/connection   -> providers, [sql], [connection]
//	providers/sql/defaults     -> providers, [sql], []
type Path struct {
	EntityType string
	SubType    []string
	KeyPath    []string
}

// ParsePath parses the segments of id. A trailing CacheID is ignored, so
// cache keys parse to the path they were derived from.
func ParsePath(id es.Identifier, schemas Schemas) (Path, error) {
	segs := id.Segments()
	if id.ID() == CacheID && id.PathLen() > 0 {
		segs = id.Path()
	}
	if len(segs) == 0 || segs[0] == "" {
		return Path{}, fmt.Errorf("%w: %s is not a defaults path", es.ErrInvalidArgument, id)
	}
	sub, rest := schemas.SplitSubType(segs[0], segs[1:])
	return Path{EntityType: segs[0], SubType: sub, KeyPath: rest}, nil
}

// CacheKey is the identifier the defaults of the path's type are cached at.
func (p Path) CacheKey() es.Identifier { return cacheKey(p.EntityType, p.SubType) }

// cacheKey lowers the subtype segments, they are matched case-insensitively.
func cacheKey(entityType string, subtype []string) es.Identifier {
	path := make([]string, 0, len(subtype)+1)
	path = append(path, entityType)
	for _, s := range subtype {
		path = append(path, strings.ToLower(s))
	}
	return es.NewIdentifier(CacheID, path...)
}
