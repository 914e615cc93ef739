package screen

import (
	"fmt"
	"io"

	"civicconnect.org/internal/auth"
)

// Home greets the signed-in user or points to the sign-in screen.
func Home(w io.Writer, id *auth.Identity) error {
	if _, err := fmt.Fprintln(w, "CivicConnect: report a problem, make your city better"); err != nil {
		return err
	}
	if id == nil {
		_, err := fmt.Fprintln(w, "You are not signed in. Run `civic auth signin` to continue.")
		return err
	}
	_, err := fmt.Fprintf(w, "Welcome, %s\nRun `civic auth signout` to sign out.\n", DisplayName(*id))
	return err
}
