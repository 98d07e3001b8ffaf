// Package server provides a graceful HTTP server tuned for the dispatcher's
// streaming responses.
//
// The defaults differ from net/http in one deliberate way: the write
// timeout is zero, because server-sent event streams and byte streams stay
// open for as long as the client listens. Set one explicitly with
// WithWriteTimeout if no handler streams.
//
// Basic usage:
//
//	srv := server.New(":8080", server.WithLogger(log))
//
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer stop()
//
//	if err := srv.Start(ctx, d); err != nil && !errors.Is(err, context.Canceled) {
//		log.Error("server failed", "error", err)
//	}
//	srv.Stop()
//
// Run returns an errgroup-compatible closure when the server is one of
// several coordinated components.
package server
