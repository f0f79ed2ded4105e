package service

import "daily-tracker/internal/docstore"

const DefaultAppID = "default-app-id"

// Paths builds the per-user store locations, namespaced by application id.
type Paths struct {
	AppID string
}

func NewPaths(appID string) Paths {
	if appID == "" {
		appID = DefaultAppID
	}
	return Paths{AppID: appID}
}

func (p Paths) userRoot(uid string) string {
	return docstore.Join("artifacts", p.AppID, "users", uid)
}

func (p Paths) Settings(uid string) string {
	return docstore.Join(p.userRoot(uid), "settings", "profile")
}

func (p Paths) Tasks(uid string) string {
	return docstore.Join(p.userRoot(uid), "tasks")
}

func (p Paths) Task(uid, id string) string {
	return docstore.Join(p.Tasks(uid), id)
}

func (p Paths) Transactions(uid string) string {
	return docstore.Join(p.userRoot(uid), "transactions")
}
