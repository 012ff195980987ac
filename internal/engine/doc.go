// Package engine is the orchestrator front ends talk to.
//
// Every write follows the same path: apply the change to the local store
// optimistically, call the gateway, then confirm the mutation with the
// server's result or roll it back with the error. Reads are derived from
// store snapshots by the aggregate package each time they are asked for.
//
// Wiring:
//
//	client := gateway.NewHTTPClient(cfg.Gateway.BaseURL, nil, logger)
//	mgr := session.NewManager(client, session.WithLogger(logger))
//	client.SetAuthorizer(mgr)
//
//	eng := engine.New(engine.Options{
//		Gateway:  client,
//		Session:  mgr,
//		Store:    logstore.New(logger),
//		Calendar: cal,
//		Logger:   logger,
//	})
//	if err := eng.Reload(ctx); err != nil { ... }
//	m, err := eng.ToggleToday(ctx, habitID, 0)
//
// Logging out, explicitly or because a refresh was rejected, clears the
// store through a session hook.
package engine
