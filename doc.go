// Package dashsync keeps server state for the event dashboard in a keyed cache and
// routes every write through a gateway that invalidates what it touched.
//
// Components:
//   - Cache: entries keyed by Key (ordered tuple of primitives). Each entry tracks
//     request generations so only the latest response is applied, and an
//     invalidation generation (GenStore) so a response that raced an invalidation
//     is never stored as fresh.
//   - Provider: byte store holding framed payloads. It owns eviction.
//   - Mutation: wraps one server write with declared invalidation targets and
//     user notifications.
//
// Typical use:
//
//	q := dashsync.Query[Settings]{Key: dashsync.K("admin-settings"), Load: api.Settings}
//	sub := q.Subscribe(cache, render, dashsync.WithEnabled(isAdmin))
//	_ = sub.Sync(ctx)
//
//	m, _ := dashsync.NewMutation(cache, toasts, dashsync.MutationDef[SetReq, Setting]{
//		Name: "update-setting", Do: api.UpdateSetting,
//		Invalidates: []dashsync.Key{dashsync.K("admin-settings")},
//	})
//	_, _ = m.Mutate(ctx, SetReq{Key: "registrations", Value: true})
package dashsync
