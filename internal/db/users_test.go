package db

import (
	"errors"
	"strings"
	"testing"
)

func createUser(t *testing.T, repo *UserRepository, email, username string) string {
	t.Helper()

	user, err := repo.Create(CreateUserParams{
		Email:       email,
		Username:    username,
		DisplayName: username,
		FirstName:   "Test",
		LastName:    "User",
	})
	if err != nil {
		t.Fatalf("Create(%s) error = %v", email, err)
	}
	return user.ID
}

func TestCreateUserEnforcesUniqueEmailAndUsername(t *testing.T) {
	repo := NewUserRepository(openTestDB(t))
	createUser(t, repo, "a@example.com", "alice")

	_, err := repo.Create(CreateUserParams{
		Email: "a@example.com", Username: "other", DisplayName: "other",
		FirstName: "O", LastName: "T",
	})
	if err == nil || !IsUniqueConstraintError(err) {
		t.Fatalf("duplicate email error = %v, want unique constraint", err)
	}
	if !strings.Contains(err.Error(), "users.email") {
		t.Fatalf("error %q does not name the email column", err)
	}

	_, err = repo.Create(CreateUserParams{
		Email: "b@example.com", Username: "alice", DisplayName: "alice",
		FirstName: "A", LastName: "L",
	})
	if err == nil || !IsUniqueConstraintError(err) {
		t.Fatalf("duplicate username error = %v, want unique constraint", err)
	}
	if !strings.Contains(err.Error(), "users.username") {
		t.Fatalf("error %q does not name the username column", err)
	}
}

func TestEmailRegistered(t *testing.T) {
	repo := NewUserRepository(openTestDB(t))
	createUser(t, repo, "a@example.com", "alice")

	registered, err := repo.EmailRegistered("a@example.com")
	if err != nil {
		t.Fatalf("EmailRegistered() error = %v", err)
	}
	if !registered {
		t.Fatal("existing email reported as unregistered")
	}

	registered, err = repo.EmailRegistered("nobody@example.com")
	if err != nil {
		t.Fatalf("EmailRegistered() error = %v", err)
	}
	if registered {
		t.Fatal("unknown email reported as registered")
	}
}

func TestIsUsernameAvailable(t *testing.T) {
	repo := NewUserRepository(openTestDB(t))
	createUser(t, repo, "a@example.com", "alice")

	available, err := repo.IsUsernameAvailable("alice")
	if err != nil {
		t.Fatalf("IsUsernameAvailable() error = %v", err)
	}
	if available {
		t.Fatal("taken username reported as available")
	}

	available, err = repo.IsUsernameAvailable("bob")
	if err != nil {
		t.Fatalf("IsUsernameAvailable() error = %v", err)
	}
	if !available {
		t.Fatal("free username reported as taken")
	}
}

func TestUpdateProfilePartialUpdate(t *testing.T) {
	repo := NewUserRepository(openTestDB(t))
	id := createUser(t, repo, "a@example.com", "alice")

	bio := "hello"
	if err := repo.UpdateProfile(id, UpdateProfileParams{Bio: &bio}); err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}

	user, err := repo.FindByID(id)
	if err != nil {
		t.Fatalf("FindByID() error = %v", err)
	}
	if user.Bio == nil || *user.Bio != "hello" {
		t.Fatalf("bio = %v, want %q", user.Bio, "hello")
	}
	if user.DisplayName != "alice" {
		t.Fatalf("displayName = %q, untouched field changed", user.DisplayName)
	}
	if user.UpdatedAt == nil {
		t.Fatal("updatedAt not set after profile update")
	}
}

func TestPendingUserUpsertResetsState(t *testing.T) {
	repo := NewPendingUserRepository(openTestDB(t))

	if _, err := repo.Upsert("a@example.com"); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := repo.MarkVerified("a@example.com"); err != nil {
		t.Fatalf("MarkVerified() error = %v", err)
	}
	if err := repo.SetName("a@example.com", "Jo", "Doe"); err != nil {
		t.Fatalf("SetName() error = %v", err)
	}

	// Re-initiating the signup starts the flow over.
	if _, err := repo.Upsert("a@example.com"); err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}

	pending, err := repo.FindByEmail("a@example.com")
	if err != nil {
		t.Fatalf("FindByEmail() error = %v", err)
	}
	if pending.IsVerified {
		t.Fatal("verification flag survived the reset")
	}
	if pending.ProfileComplete() {
		t.Fatal("profile names survived the reset")
	}
}

func TestFindByEmailNotFound(t *testing.T) {
	repo := NewUserRepository(openTestDB(t))

	if _, err := repo.FindByEmail("ghost@example.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindByEmail() error = %v, want ErrNotFound", err)
	}
}
