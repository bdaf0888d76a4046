package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/chat-app/backend/internal/client"
)

var (
	serverURL string
	tokenFile string
	width     int
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "chatcli",
		Short:        "Terminal client for the chat backend",
		SilenceUsage: true,
	}

	defaultServer := os.Getenv("CHAT_SERVER")
	if defaultServer == "" {
		defaultServer = "http://localhost:8000"
	}
	root.PersistentFlags().StringVar(&serverURL, "server", defaultServer, "backend base URL")
	root.PersistentFlags().StringVar(&tokenFile, "token-file", "", "where the access token is kept (default: user config dir)")
	root.PersistentFlags().IntVar(&width, "width", 72, "output width for the conversation view")

	root.AddCommand(newSignupCmd(), newLoginCmd(), newLogoutCmd(), newHistoryCmd(), newChatCmd())
	return root
}

func newClient() (*client.Client, error) {
	path := tokenFile
	if path == "" {
		var err error
		if path, err = client.DefaultTokenPath(); err != nil {
			return nil, err
		}
	}
	return client.New(serverURL, client.NewFileTokenStore(path))
}

func newSignupCmd() *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			in := bufio.NewReader(cmd.InOrStdin())
			if username == "" {
				if username, err = prompt(cmd.OutOrStdout(), in, "Username: "); err != nil {
					return err
				}
			}
			password, err := prompt(cmd.OutOrStdout(), in, "Password: ")
			if err != nil {
				return err
			}
			confirm, err := prompt(cmd.OutOrStdout(), in, "Confirm Password: ")
			if err != nil {
				return err
			}

			if err := c.Signup(cmd.Context(), username, password, confirm); err != nil {
				return viewError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Account created. Run `chatcli login` to continue.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account name")
	return cmd
}

func newLoginCmd() *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and remember the access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			in := bufio.NewReader(cmd.InOrStdin())
			if username == "" {
				if username, err = prompt(cmd.OutOrStdout(), in, "Username: "); err != nil {
					return err
				}
			}
			password, err := prompt(cmd.OutOrStdout(), in, "Password: ")
			if err != nil {
				return err
			}

			if err := c.Login(cmd.Context(), username, password); err != nil {
				return viewError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged in.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account name")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			if err := c.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Print the conversation so far",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			records, err := c.History(cmd.Context())
			if err != nil {
				return viewError(err)
			}
			renderHistory(cmd.OutOrStdout(), records, width)
			return nil
		},
	}
}

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Open the conversation and chat with the assistant",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			return runChat(cmd.Context(), c, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func runChat(ctx context.Context, c *client.Client, stdin io.Reader, out io.Writer) error {
	conv, err := c.Connect(ctx)
	if err != nil {
		return viewError(err)
	}
	defer conv.Close()

	records, err := c.History(ctx)
	if err != nil {
		return viewError(err)
	}
	renderHistory(out, records, width)

	view := &chatView{out: out, width: width}
	done := make(chan error, 1)
	go func() {
		for {
			frame, err := conv.Receive()
			if err != nil {
				done <- err
				return
			}
			view.assistant(frame)
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-done:
			return fmt.Errorf("connection closed: %w", err)
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			echo, err := conv.Send(line)
			if err != nil {
				return err
			}
			view.user(echo)
		}
	}
}

func prompt(out io.Writer, in *bufio.Reader, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(strings.ToLower(label), ": "), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// viewError turns client errors into the messages the views display.
func viewError(err error) error {
	if errors.Is(err, client.ErrLoginRequired) || errors.Is(err, client.ErrUnauthorized) {
		return errors.New("not logged in: run `chatcli login` first")
	}
	return errors.New(client.Message(err))
}
