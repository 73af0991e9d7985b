package dbtype

// Node is a hydrated PackStream 'N' struct: a labeled, propertied graph
// node as returned in a Record.
type Node struct {
	Id        int64
	ElementId string
	Labels    []string
	Props     map[string]any
}

// Relationship is a hydrated PackStream 'R' struct: a typed, propertied
// edge between two nodes, returned standalone in a Record.
type Relationship struct {
	Id             int64
	ElementId      string
	StartId        int64
	StartElementId string
	EndId          int64
	EndElementId   string
	Type           string
	Props          map[string]any
}

// UnboundRelationship is a hydrated PackStream 'r' struct: a relationship
// as it appears inside a Path, before Bind fills in its endpoints.
type UnboundRelationship struct {
	Id        int64
	ElementId string
	Type      string
	Props     map[string]any
}

// Bind produces a full Relationship from an UnboundRelationship plus the
// start/end node ids it connects, as found while walking a Path's index list.
func (u *UnboundRelationship) Bind(startId, endId int64) *Relationship {
	return &Relationship{
		Id:        u.Id,
		ElementId: u.ElementId,
		StartId:   startId,
		EndId:     endId,
		Type:      u.Type,
		Props:     u.Props,
	}
}

// Path is a hydrated PackStream 'P' struct: an alternating walk of nodes
// and relationships. Indexes encodes the walk as pairs of
// (signed relationship index, node index), where a negative relationship
// index means the edge is traversed against its natural direction.
type Path struct {
	Nodes         []*Node
	relationships []*UnboundRelationship
	Indexes       []int
}

// NewPath builds a Path from its hydrated fields, storing them as given.
func NewPath(nodes []*Node, relationships []*UnboundRelationship, indexes []int) *Path {
	return &Path{Nodes: nodes, relationships: relationships, Indexes: indexes}
}

// GetRelationships walks Indexes and returns the bound Relationship at each
// step of the path, in traversal order.
func (p *Path) GetRelationships() []*Relationship {
	if len(p.Indexes) == 0 {
		return nil
	}
	out := make([]*Relationship, 0, len(p.Indexes)/2)
	node := p.Nodes[0]
	for i := 0; i < len(p.Indexes); i += 2 {
		relIdx := p.Indexes[i]
		nodeIdx := p.Indexes[i+1]
		var rel *UnboundRelationship
		var next *Node
		next = p.Nodes[nodeIdx]
		if relIdx > 0 {
			rel = p.relationships[relIdx-1]
			out = append(out, rel.Bind(node.Id, next.Id))
		} else {
			rel = p.relationships[-relIdx-1]
			out = append(out, rel.Bind(next.Id, node.Id))
		}
		node = next
	}
	return out
}
