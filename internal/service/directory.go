package service

import "context"

// DirectoryKind names the collection a directory id belongs to.
type DirectoryKind string

const (
	DirectoryClient  DirectoryKind = "client"
	DirectoryService DirectoryKind = "service"
	DirectoryMember  DirectoryKind = "member"
	DirectoryTag     DirectoryKind = "tag"
)

// Directory resolves client, service, team member and tag ids to display
// names. It is read-only and only used for descriptions.
type Directory interface {
	Name(ctx context.Context, kind DirectoryKind, id string) (string, bool)
}

// StaticDirectory is a Directory backed by in-memory tables, e.g. loaded
// from the config file.
type StaticDirectory map[DirectoryKind]map[string]string

func (d StaticDirectory) Name(_ context.Context, kind DirectoryKind, id string) (string, bool) {
	name, ok := d[kind][id]
	return name, ok
}

// resolveName falls back to the raw id when the directory has no entry.
func resolveName(ctx context.Context, dir Directory, kind DirectoryKind, id string) string {
	if id == "" {
		return ""
	}
	if dir != nil {
		if name, ok := dir.Name(ctx, kind, id); ok && name != "" {
			return name
		}
	}
	return id
}
