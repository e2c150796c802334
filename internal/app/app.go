package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/kzs0/tracehop"
	"github.com/kzs0/tracehop/server"
)

// Serve runs the demo server on cfg.ServerAddr until ctx is done.
func Serve(ctx context.Context, rt *tracehop.Runtime, cfg Config) error {
	srv := server.New(NewHandler(rt, cfg), server.Config{Addr: cfg.ServerAddr})

	ln, err := srv.Listen()
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.ServerAddr, err)
	}
	return serve(ctx, rt, srv, ln)
}

func serve(ctx context.Context, rt *tracehop.Runtime, srv *server.Server, ln net.Listener) error {
	rt.Logger().InfoContext(ctx, fmt.Sprintf("Listening on %s", ln.Addr()))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	if err := srv.Shutdown(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Call issues one GET to cfg.ServerURL under a "client handle" span and
// prints the response status to out.
func Call(ctx context.Context, rt *tracehop.Runtime, cfg Config, out io.Writer) error {
	client := tracehop.NewClient(rt, nil, tracehop.WithSpanName("client handle"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.ServerURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	_, err = fmt.Fprintf(out, "status: %s\n", resp.Status)
	return err
}
