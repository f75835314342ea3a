package store

import (
	"context"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/andresmejia3/facewatch/internal/gallery"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestVectorText(t *testing.T) {
	vec := []float64{1, -0.25, 0.125, 3e-7}
	s := vecToString(vec)
	if s != "[1,-0.25,0.125,3e-07]" {
		t.Errorf("vecToString() = %q", s)
	}
	got, err := parseVector(s)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, vec) {
		t.Errorf("parseVector() = %v, want %v", got, vec)
	}
	for _, bad := range []string{"", "[]", "[1,x]"} {
		if _, err := parseVector(bad); err == nil {
			t.Errorf("parseVector(%q) should fail", bad)
		}
	}
}

// TestStoreIntegration runs a full integration test against a real Postgres container.
// It requires Docker to be running.
func TestStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	// We wrap this in a function to recover from panics inside testcontainers (e.g. socket not found)
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("testcontainers panicked: %v", r)
			}
		}()
		_, err = testcontainers.NewDockerClientWithOpts(ctx)
		return
	}()
	if err != nil {
		t.Skipf("Docker not available, skipping integration test: %v", err)
	}

	// We use the official pgvector image to ensure the extension is available.
	pgContainer, err := postgres.Run(ctx, "pgvector/pgvector:pg16",
		postgres.WithDatabase("facewatch_test"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Fatalf("Failed to terminate container: %v", err)
		}
	}()

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	// Initialize Store (runs migrations)
	s, err := New(ctx, connStr)
	if err != nil {
		t.Fatalf("Failed to connect to store: %v", err)
	}
	defer s.Close(ctx)

	// --- Test Scenarios ---

	sander := gallery.KnownIdentity{Label: "Sander", Encodings: [][]float64{{0.1, 0.2, 0.3}, {0.15, 0.2, 0.3}}}
	maria := gallery.KnownIdentity{Label: "Maria", Encodings: [][]float64{{0.9, 0.1, 0.0}}}

	if err := s.ReplaceIdentity(ctx, sander); err != nil {
		t.Fatalf("ReplaceIdentity failed: %v", err)
	}
	if err := s.ReplaceIdentity(ctx, maria); err != nil {
		t.Fatalf("ReplaceIdentity failed: %v", err)
	}

	loaded, err := s.LoadIdentities(ctx)
	if err != nil {
		t.Fatalf("LoadIdentities failed: %v", err)
	}
	if len(loaded) != 2 || loaded[0].Label != "Sander" || loaded[1].Label != "Maria" {
		t.Fatalf("unexpected identities: %+v", loaded)
	}
	if !reflect.DeepEqual(loaded[0].Encodings, sander.Encodings) {
		t.Errorf("encodings did not round-trip: %v", loaded[0].Encodings)
	}

	// Replacing swaps the stored encodings for the label.
	sander.Encodings = [][]float64{{0.5, 0.5, 0.5}}
	if err := s.ReplaceIdentity(ctx, sander); err != nil {
		t.Fatalf("ReplaceIdentity failed: %v", err)
	}

	summaries, err := s.ListIdentities(ctx)
	if err != nil {
		t.Fatalf("ListIdentities failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("Expected 2 identities, got %d", len(summaries))
	}
	byLabel := map[string]IdentitySummary{}
	for _, sum := range summaries {
		byLabel[sum.Label] = sum
	}
	if byLabel["Sander"].Count != 1 || byLabel["Sander"].Dim != 3 {
		t.Errorf("unexpected Sander summary: %+v", byLabel["Sander"])
	}

	// The loaded identities form a valid gallery.
	g, err := gallery.New(loaded)
	if err != nil || g.Len() != 2 {
		t.Errorf("stored identities do not form a gallery: %v", err)
	}

	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if _, err := s.LoadIdentities(ctx); err == nil {
		t.Error("expected error after the table was dropped")
	}
}
