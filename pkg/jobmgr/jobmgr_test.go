package jobmgr

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestStartAsyncRunsAndRemoves(t *testing.T) {
	m := NewManager(nil)
	done := make(chan struct{})

	err := m.StartAsync(context.Background(), "work", func(ctx context.Context) error {
		close(done)
		return nil
	})
	if err != nil {
		t.Fatalf("StartAsync: %v", err)
	}

	<-done
	m.Wait()
	if names := m.List(); len(names) != 0 {
		t.Fatalf("jobs still tracked after completion: %v", names)
	}
}

func TestStartAsyncRejectsDuplicateName(t *testing.T) {
	m := NewManager(nil)
	release := make(chan struct{})
	defer close(release)

	_ = m.StartAsync(context.Background(), "work", func(ctx context.Context) error {
		<-release
		return nil
	})
	if err := m.StartAsync(context.Background(), "work", func(ctx context.Context) error { return nil }); err == nil {
		t.Fatal("second job with the same name was accepted")
	}
}

func TestStopCancelsJob(t *testing.T) {
	m := NewManager(nil)
	stopped := make(chan struct{})

	_ = m.StartAsync(context.Background(), "work", func(ctx context.Context) error {
		<-ctx.Done()
		close(stopped)
		return ctx.Err()
	})
	if err := m.Stop("work"); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not observe cancellation")
	}
	if err := m.Stop("work"); err == nil {
		t.Fatal("stopping a stopped job did not error")
	}
}

func TestParentContextStopsJobs(t *testing.T) {
	m := NewManager(nil)
	ctx, cancel := context.WithCancel(context.Background())

	for _, name := range []string{"a", "b"} {
		_ = m.StartAsync(ctx, name, func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})
	}
	cancel()
	m.Wait()

	if names := m.List(); len(names) != 0 {
		t.Fatalf("jobs survived parent cancellation: %v", names)
	}
}

func TestReporterMessages(t *testing.T) {
	msgs := make(chan string, 8)
	m := NewManager(func(s string) { msgs <- s })

	_ = m.StartAsync(context.Background(), "ok", func(ctx context.Context) error { return nil })
	m.Wait()

	var got []string
	for len(msgs) > 0 {
		got = append(got, <-msgs)
	}
	joined := strings.Join(got, " ")
	if !strings.Contains(joined, "running:ok") || !strings.Contains(joined, "done:ok") {
		t.Fatalf("reporter messages = %v, want running and done", got)
	}
}

func TestStatus(t *testing.T) {
	m := NewManager(nil)
	if s := m.Status(); s != "No jobs are running." {
		t.Fatalf("Status = %q", s)
	}

	release := make(chan struct{})
	_ = m.StartAsync(context.Background(), "work", func(ctx context.Context) error {
		<-release
		return nil
	})
	if s := m.Status(); !strings.Contains(s, "work") {
		t.Fatalf("Status = %q, want it to mention the running job", s)
	}
	close(release)
	m.Wait()
}
