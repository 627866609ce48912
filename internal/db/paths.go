package db

import "strings"

// Collection ids of the Firestore layout.
const (
	UsersCollection                 = "users"
	ProfilesCollection              = "profiles"
	SharedProfilesCollection        = "sharedProfiles"
	UserSharesCollection            = "userShares"
	OutgoingCollection              = "outgoing"
	IncomingCollection              = "incoming"
	CollaborativeProfilesCollection = "collaborativeProfiles"
)

// Join builds a slash separated document or collection path.
func Join(parts ...string) string { return strings.Join(parts, "/") }

// UserPath is users/{uid}.
func UserPath(uid string) string { return Join(UsersCollection, uid) }

// ProfilesPath is users/{uid}/profiles.
func ProfilesPath(uid string) string { return Join(UsersCollection, uid, ProfilesCollection) }

// ProfilePath is users/{uid}/profiles/{profileID}.
func ProfilePath(uid, profileID string) string { return Join(ProfilesPath(uid), profileID) }

// SharedProfileRefsPath is users/{uid}/sharedProfiles.
func SharedProfileRefsPath(uid string) string {
	return Join(UsersCollection, uid, SharedProfilesCollection)
}

func SharedProfileRefPath(uid, shareID string) string {
	return Join(SharedProfileRefsPath(uid), shareID)
}

// SharedProfilePath is the public sharedProfiles/{shareID} document.
func SharedProfilePath(shareID string) string { return Join(SharedProfilesCollection, shareID) }

func UserSharesPath(uid string) string { return Join(UserSharesCollection, uid) }

func OutgoingSharesPath(uid string) string { return Join(UserSharesPath(uid), OutgoingCollection) }

func IncomingSharesPath(uid string) string { return Join(UserSharesPath(uid), IncomingCollection) }

func OutgoingSharePath(uid, shareID string) string { return Join(OutgoingSharesPath(uid), shareID) }

func IncomingSharePath(uid, shareID string) string { return Join(IncomingSharesPath(uid), shareID) }

func CollaborativeProfilePath(id string) string {
	return Join(CollaborativeProfilesCollection, id)
}

// splitPath returns the parent collection path and the document id of a document path.
func splitPath(path string) (parent, id string) {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}

// collectionID returns the last segment of a collection path.
func collectionID(collection string) string {
	_, id := splitPath(collection)
	return id
}

// validDocPath reports whether path has an even, non-zero number of non-empty segments.
func validDocPath(path string) bool {
	parts := strings.Split(path, "/")
	if len(parts) == 0 || len(parts)%2 != 0 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
	}
	return true
}
