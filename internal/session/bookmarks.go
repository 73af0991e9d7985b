package session

import "context"

// BookmarkManager lets several sessions coordinate causal consistency
// against one logical database: each session both contributes the
// bookmark its own work produces and consults whatever the manager has
// accumulated from every other session sharing it, per the teacher's
// neo4j.BookmarkManager.
type BookmarkManager interface {
	GetBookmarks(ctx context.Context, database string) ([]string, error)
	UpdateBookmarks(ctx context.Context, database string, previous, new []string) error
	Forget(ctx context.Context, databases ...string)
}

// bookmarkSet is grounded on the teacher's sessionBookmarks: a session's
// own bookmark set, optionally unioned with a shared BookmarkManager's view
// of the same database.
type bookmarkSet struct {
	manager  BookmarkManager
	database string
	own      []string
}

func newBookmarkSet(manager BookmarkManager, database string, initial []string) *bookmarkSet {
	return &bookmarkSet{manager: manager, database: database, own: cleanBookmarks(initial)}
}

func cleanBookmarks(bookmarks []string) []string {
	out := make([]string, 0, len(bookmarks))
	for _, b := range bookmarks {
		if b != "" {
			out = append(out, b)
		}
	}
	return out
}

// all returns the bookmarks a new BEGIN should send: the session's own set
// unioned with the bookmark manager's, deduplicated.
func (b *bookmarkSet) all(ctx context.Context) ([]string, error) {
	if b.manager == nil {
		return b.own, nil
	}
	shared, err := b.manager.GetBookmarks(ctx, b.database)
	if err != nil {
		return nil, err
	}
	if len(shared) == 0 {
		return b.own, nil
	}
	seen := make(map[string]bool, len(b.own)+len(shared))
	merged := make([]string, 0, len(b.own)+len(shared))
	for _, set := range [][]string{b.own, shared} {
		for _, bm := range set {
			if !seen[bm] {
				seen[bm] = true
				merged = append(merged, bm)
			}
		}
	}
	return merged, nil
}

// replace installs newBookmark, returned in a COMMIT/auto-commit RUN
// SUCCESS, as the session's entire bookmark set, per spec.md §4.9 ("on
// successful commit, replace the session's bookmark set with the single
// bookmark returned in metadata"), and forwards the change to the shared
// manager if one is configured.
func (b *bookmarkSet) replace(ctx context.Context, newBookmark string) error {
	if newBookmark == "" {
		return nil
	}
	previous := b.own
	b.own = []string{newBookmark}
	if b.manager == nil {
		return nil
	}
	return b.manager.UpdateBookmarks(ctx, b.database, previous, b.own)
}

func (b *bookmarkSet) last() string {
	if len(b.own) == 0 {
		return ""
	}
	return b.own[len(b.own)-1]
}
