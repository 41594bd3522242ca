// Package orchestrator runs one embedded search server instance from bundle
// to ready.
//
// An Orchestrator owns a private working directory and a random HTTP port.
// The first call to Ready drives the startup pipeline:
//
//	Initializing
//	  -> ExtractingResources   runtime and application bundles, concurrently
//	  -> Starting              launch the JVM through a supervisor
//	  -> WaitingForReady       poll /_cluster/health?wait_for_status=yellow
//	  -> InstallingPlugins     one plugin, then Starting and WaitingForReady again
//	  -> Ready
//
// Any failure moves the instance to Failed. Dispose moves it to Disposed from
// any state, stops the server and deletes the working directory.
//
//	o, err := orchestrator.New(ctx,
//		orchestrator.WithRuntimeBundle(bundle.FileSource{Path: "jdk.bundle"}),
//		orchestrator.WithAppBundle(bundle.FileSource{Path: "es.bundle"}),
//		orchestrator.WithPlugins(orchestrator.Plugin{Name: "analysis-icu"}),
//	)
//	if err != nil {
//		return err
//	}
//	defer o.Dispose()
//	if err := o.Ready(ctx); err != nil {
//		return err
//	}
//	fmt.Println(o.BaseURL())
package orchestrator
