package pool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"
)

const (
	// rendezvousPatience bounds how long a worker waits for the coordinator
	// to write its address. The file appears as soon as rank 0 starts, so
	// this only runs out when rank 0 died or the ranks share no filesystem.
	rendezvousPatience = 5 * time.Minute
	rendezvousInterval = 500 * time.Millisecond

	dialPatience = 2 * time.Minute
	dialInterval = time.Second

	// waitInterval paces the polling of an open but empty queue.
	waitInterval = 500 * time.Millisecond
)

// RunWorker is the whole life of a non-zero rank: find the coordinator, pull
// units until told to exit, render each one, ack the result. Losing the
// connection after it was ever up means the coordinator is done with us, so
// that path returns nil too.
func RunWorker(ctx context.Context, log *slog.Logger, exec Executor) error {
	addr, err := awaitRendezvous(ctx, coordPath())
	if err != nil {
		return err
	}
	conn, err := dialCoordinator(ctx, addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	log.Info("worker connected", "coordinator", addr)

	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)
	rendered := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		resp, err := roundTrip(enc, dec, request{Op: opNext})
		if err != nil {
			log.Info("coordinator gone, worker exiting", "rendered", rendered)
			return nil
		}

		switch resp.Op {
		case opUnit:
			if resp.Unit == nil {
				return fmt.Errorf("coordinator sent a unit response without a unit")
			}
			done := request{Op: opDone, ID: resp.Unit.ID}
			if err := exec.Execute(ctx, *resp.Unit); err != nil {
				done.Err = err.Error()
			} else {
				rendered++
			}
			if _, err := roundTrip(enc, dec, done); err != nil {
				log.Info("coordinator gone, worker exiting", "rendered", rendered)
				return nil
			}
		case opWait:
			select {
			case <-time.After(waitInterval):
			case <-ctx.Done():
				return ctx.Err()
			}
		case opExit:
			log.Info("worker done", "rendered", rendered)
			return nil
		default:
			return fmt.Errorf("coordinator sent unknown op %q", resp.Op)
		}
	}
}

func roundTrip(enc *json.Encoder, dec *json.Decoder, req request) (response, error) {
	if err := enc.Encode(req); err != nil {
		return response{}, err
	}
	var resp response
	if err := dec.Decode(&resp); err != nil {
		return response{}, err
	}
	return resp, nil
}

// awaitRendezvous polls for the coordinator's address file.
func awaitRendezvous(ctx context.Context, path string) (string, error) {
	deadline := time.Now().Add(rendezvousPatience)
	for {
		data, err := os.ReadFile(path)
		if err == nil {
			if addr := strings.TrimSpace(string(data)); addr != "" {
				return addr, nil
			}
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("coordinator rendezvous file %s never appeared", path)
		}
		select {
		case <-time.After(rendezvousInterval):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func dialCoordinator(ctx context.Context, addr string) (net.Conn, error) {
	deadline := time.Now().Add(dialPatience)
	for {
		conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
		if err == nil {
			return conn, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("dialing coordinator %s: %w", addr, err)
		}
		select {
		case <-time.After(dialInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
