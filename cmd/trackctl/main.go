// trackctl is the device-side companion to the tracking server: it
// keeps the local cache, runs sync cycles and drives login/logout.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pixeltrace/internal/client/identity"
	"pixeltrace/internal/client/localstore"
	"pixeltrace/internal/client/remote"
	synceng "pixeltrace/internal/client/sync"

	"github.com/spf13/cobra"
)

// Session fields persisted between invocations.
const (
	metaSessionToken      = "session_token"
	metaSessionEmail      = "session_email"
	metaSessionAccountID  = "session_account_id"
	metaSessionExternalID = "session_external_id"
)

type app struct {
	store    *localstore.Store
	client   *remote.Client
	workflow *identity.Workflow
	engine   *synceng.Engine
}

func (a *app) session() *synceng.Session {
	token, _ := a.store.GetMeta(metaSessionToken)
	if token == "" {
		return nil
	}
	a.client.SetSession(token)
	email, _ := a.store.GetMeta(metaSessionEmail)
	accountID, _ := a.store.GetMeta(metaSessionAccountID)
	externalID, _ := a.store.GetMeta(metaSessionExternalID)
	return &synceng.Session{AccountID: accountID, ExternalID: externalID, Email: email}
}

func (a *app) saveSession(s *synceng.Session, token string) error {
	if s == nil || token == "" {
		for _, key := range []string{metaSessionToken, metaSessionEmail, metaSessionAccountID, metaSessionExternalID} {
			if err := a.store.DeleteMeta(key); err != nil {
				return err
			}
		}
		return nil
	}
	for key, value := range map[string]string{
		metaSessionToken:      token,
		metaSessionEmail:      s.Email,
		metaSessionAccountID:  s.AccountID,
		metaSessionExternalID: s.ExternalID,
	} {
		if err := a.store.SetMeta(key, value); err != nil {
			return err
		}
	}
	return nil
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "pixeltrace.db"
	}
	return filepath.Join(home, ".pixeltrace", "local.db")
}

func main() {
	var (
		storePath string
		serverURL string
		a         app
	)

	root := &cobra.Command{
		Use:           "trackctl",
		Short:         "Manage locally tracked emails and their sync state",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := os.MkdirAll(filepath.Dir(storePath), 0o755); err != nil {
				return err
			}
			store, err := localstore.Open(storePath)
			if err != nil {
				return err
			}
			a.store = store
			a.client = remote.NewClient(serverURL)
			a.workflow = identity.NewWorkflow(store, a.client)
			a.engine = synceng.NewEngine(store, a.client)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.store != nil {
				a.store.Close()
			}
		},
	}
	root.PersistentFlags().StringVar(&storePath, "store", defaultStorePath(), "path to the local cache database")
	root.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "tracking server base URL")

	var (
		loginToken string
		onConflict string
	)
	loginCmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and claim locally tracked records",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.workflow.Login(loginToken)
			if err != nil {
				return err
			}

			if result.ConflictDetected {
				switch onConflict {
				case "wipe":
					result, err = a.workflow.ResolveWipe()
				case "keep":
					result, err = a.workflow.ResolveKeep()
				default:
					fmt.Printf("local data belongs to %s but you signed in as %s\n", result.PreviousEmail, result.NewEmail)
					fmt.Println("re-run with --on-conflict=wipe to discard local data, or --on-conflict=keep to migrate it")
					return nil
				}
				if err != nil {
					return err
				}
			}

			// The workflow installed the session on the HTTP client;
			// persist it for the next invocation.
			if err := a.saveSession(result.Session, a.workflow.AccessToken()); err != nil {
				return err
			}

			fmt.Printf("signed in as %s\n", result.NewEmail)
			if result.LinkSkipped {
				fmt.Println("warning: local records were not claimed (remote ownership conflict or network failure)")
			}
			return nil
		},
	}
	loginCmd.Flags().StringVar(&loginToken, "token", "", "external id token")
	loginCmd.Flags().StringVar(&onConflict, "on-conflict", "", "resolution when local data belongs to another identity: wipe or keep")
	loginCmd.MarkFlagRequired("token")

	var keepData bool
	logoutCmd := &cobra.Command{
		Use:   "logout",
		Short: "Sign out, optionally keeping local data",
		RunE: func(cmd *cobra.Command, args []string) error {
			if s := a.session(); s != nil {
				a.workflow.AdoptSession(s)
			}
			if err := a.workflow.Logout(keepData); err != nil {
				return err
			}
			if err := a.saveSession(nil, ""); err != nil {
				return err
			}
			fmt.Println("signed out")
			return nil
		},
	}
	logoutCmd.Flags().BoolVar(&keepData, "keep", false, "keep local records after sign-out")

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the local cache with the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.engine.Sync(a.session())
			if err != nil {
				return err
			}
			printResult(result)
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the merged tracking view",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.engine.Sync(a.session())
			if err != nil {
				return err
			}
			for _, rec := range result.Records {
				opened := "never opened"
				if rec.LastOpenedAt != nil {
					opened = fmt.Sprintf("%d open(s), last %s", rec.OpenCount, rec.LastOpenedAt.Format("2006-01-02 15:04"))
				}
				fmt.Printf("%s  %-40s  %s\n", rec.ID, truncate(rec.Subject, 40), opened)
			}
			printResult(result)
			return nil
		},
	}

	var deleteSender string
	deleteCmd := &cobra.Command{
		Use:   "delete <id>...",
		Short: "Delete tracking records locally and remotely",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.store.Remove(args); err != nil {
				return err
			}

			session := a.session()
			owner := ""
			if session != nil {
				owner = session.ExternalID
			}
			if _, err := a.client.Delete(args, deleteSender, owner); err != nil {
				// Queue for retry on the next sync cycle.
				if qErr := a.store.EnqueueDelete(args, deleteSender); qErr != nil {
					return qErr
				}
				fmt.Printf("remote delete failed (%v); queued for retry\n", err)
				return nil
			}
			fmt.Printf("deleted %d record(s)\n", len(args))
			return nil
		},
	}
	deleteCmd.Flags().StringVar(&deleteSender, "sender", "", "sender identity filter")

	root.AddCommand(loginCmd, logoutCmd, syncCmd, statusCmd, deleteCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func printResult(result *synceng.Result) {
	suffix := ""
	if result.Partial {
		suffix = " (partial: some fetches failed)"
	}
	fmt.Printf("tracked %d, opened %d (%.0f%%)%s\n",
		result.Stats.Tracked, result.Stats.Opened, result.Stats.Rate*100, suffix)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.TrimSpace(s[:n-1]) + "…"
}
