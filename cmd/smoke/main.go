package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/oklog/ulid/v2"

	"civicconnect.org/internal/client"
	"civicconnect.org/internal/report"
)

func main() {
	base := os.Getenv("CIVIC_SMOKE_API")
	if base == "" {
		base = "http://localhost:8080"
	}
	grpcAddr := os.Getenv("CIVIC_SMOKE_GRPC_ADDR")

	if grpcAddr != "" {
		h, err := client.DialHealth(grpcAddr)
		if err != nil {
			log.Fatalf("dial health at %s: %v", grpcAddr, err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		st, err := h.Check(ctx, "")
		cancel()
		_ = h.Close()
		if err != nil {
			log.Fatalf("health check: %v", err)
		}
		log.Printf("grpc health: %s", st)
	}

	c, err := client.New(base)
	if err != nil {
		log.Fatalf("client: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	email := fmt.Sprintf("smoke-%s@example.com", ulid.Make().String())
	if _, err := c.SignUp(ctx, email, "smoke-password", "Smoke Test"); err != nil {
		log.Fatalf("sign up %s: %v", email, err)
	}

	changes, err := c.Subscribe(ctx)
	if err != nil {
		log.Fatalf("subscribe: %v", err)
	}

	created, err := c.InsertReport(ctx, report.Draft{
		Title:    "Smoke test pothole",
		Category: report.CategoryPothole,
		Priority: report.PriorityLow,
	})
	if err != nil {
		log.Fatalf("insert report: %v", err)
	}
	if created.UserID == nil || *created.UserID != c.Session().Identity().ID {
		log.Fatalf("report %s not owned by the caller", created.ID)
	}

	got, err := c.GetReport(ctx, created.ID)
	if err != nil {
		log.Fatalf("get report: %v", err)
	}
	if got.Status != report.StatusSubmitted {
		log.Fatalf("unexpected status %q", got.Status)
	}

	for seen := false; !seen; {
		select {
		case ch, ok := <-changes:
			if !ok {
				log.Fatalf("change stream closed before insert of %s arrived", created.ID)
			}
			seen = ch.Op == report.OpInsert && ch.ID == created.ID
		case <-ctx.Done():
			log.Fatalf("no realtime insert for %s: %v", created.ID, ctx.Err())
		}
	}

	if err := c.SignOut(ctx); err != nil {
		log.Fatalf("sign out: %v", err)
	}
	fmt.Printf("✅ civicconnect smoke test passed: user=%s report=%s\n", email, created.ID)
}
