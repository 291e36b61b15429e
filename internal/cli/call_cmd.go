package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"

	"github.com/ayofemiade/ConvergsAI/internal/call"
	"github.com/ayofemiade/ConvergsAI/internal/config"
	"github.com/ayofemiade/ConvergsAI/internal/domain"
	"github.com/ayofemiade/ConvergsAI/internal/gwclient"
	"github.com/ayofemiade/ConvergsAI/internal/hooks"
	"github.com/ayofemiade/ConvergsAI/internal/logging"
	"github.com/ayofemiade/ConvergsAI/internal/store"
	"github.com/ayofemiade/ConvergsAI/internal/transport"
	"github.com/ayofemiade/ConvergsAI/internal/transport/livekit"
	"github.com/ayofemiade/ConvergsAI/internal/transport/wsrelay"
	"github.com/spf13/cobra"
)

func newCallCmd() *cobra.Command {
	var (
		mode       string
		persona    string
		prompt     string
		identity   string
		transportF string
		gatewayURL string
	)

	cmd := &cobra.Command{
		Use:   "call",
		Short: "Place a call to the agent and stream the transcript",
		Long: "Place a call through the gateway. Lines typed on stdin are sent to the agent as chat;\n" +
			"/end hangs up. Interrupting the process also hangs up.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			if mode != "" {
				cfg.Call.Mode = mode
			}
			if persona != "" {
				cfg.Call.Persona = persona
			}
			if prompt != "" {
				cfg.Call.Prompt = prompt
			}
			if transportF != "" {
				cfg.Call.Transport = transportF
			}
			if gatewayURL != "" {
				cfg.Call.GatewayURL = gatewayURL
			}
			if !domain.Mode(cfg.Call.Mode).Valid() {
				return fmt.Errorf("unknown mode %q (want sales or support)", cfg.Call.Mode)
			}

			factory, err := channelFactory(cfg.Call.Transport, log)
			if err != nil {
				return err
			}

			hookMgr := hooks.NewManager(log)
			hooks.RegisterCommands(hookMgr, cfg.Hooks)

			if cfg.Archive.Enabled {
				db, err := store.Open(paths.ArchivePath(&cfg), log)
				if err != nil {
					return fmt.Errorf("opening archive: %w", err)
				}
				defer db.Close()
				store.RegisterArchive(hookMgr, store.NewCallStore(db), log)
			}
			defer hookMgr.Wait()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			printer := newTranscriptPrinter(out)
			client := gwclient.New(cfg.GatewayURL(), cfg.BackendTimeout())
			c := call.New(client, client, factory, log,
				call.WithMode(domain.Mode(cfg.Call.Mode)),
				call.WithPersona(cfg.Call.Persona),
				call.WithPrompt(cfg.Call.Prompt),
				call.WithIdentity(identity),
				call.WithInterimWindow(cfg.InterimWindow()),
				call.WithHooks(hookMgr),
				call.WithObserver(printer),
			)
			defer c.Close()

			if err := c.StartCall(ctx); err != nil {
				return err
			}
			snap := c.Snapshot()
			if snap.Fallback {
				fmt.Fprintf(out, "connected to %s (local session, backend unreachable)\n", snap.SessionID)
			} else {
				fmt.Fprintf(out, "connected to %s\n", snap.SessionID)
			}

			runCallLoop(ctx, c, printer.ended(), readLines(cmd.InOrStdin()))

			if err := c.EndCall(); err != nil && !errors.Is(err, domain.ErrNotConnected) {
				return err
			}
			printSummary(out, c.Snapshot())
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "qualification mode (sales, support)")
	cmd.Flags().StringVar(&persona, "persona", "", "agent persona")
	cmd.Flags().StringVar(&prompt, "prompt", "", "custom prompt for the session")
	cmd.Flags().StringVar(&identity, "identity", "", "participant identity (default: generated by the gateway)")
	cmd.Flags().StringVar(&transportF, "transport", "", "room transport (livekit, websocket)")
	cmd.Flags().StringVar(&gatewayURL, "gateway", "", "gateway base URL")

	return cmd
}

// channelFactory returns the transport factory named in call.transport.
func channelFactory(name string, log *logging.Logger) (transport.Factory, error) {
	switch name {
	case "", config.TransportLiveKit:
		return livekit.Factory(log), nil
	case config.TransportWebSocket:
		return wsrelay.Factory(log), nil
	default:
		return nil, fmt.Errorf("unknown transport %q (want %s or %s)", name, config.TransportLiveKit, config.TransportWebSocket)
	}
}

// runCallLoop forwards stdin lines as chat until the call ends, the user
// hangs up, stdin closes, or ctx is cancelled.
func runCallLoop(ctx context.Context, c *call.Call, ended <-chan struct{}, lines <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-ended:
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			line = strings.TrimSpace(line)
			switch line {
			case "":
				continue
			case "/end", "/quit":
				return
			}
			if err := c.SendText(ctx, line); err != nil {
				log.Warn().Err(err).Msg("send failed")
			}
		}
	}
}

func readLines(r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()
	return lines
}

// transcriptPrinter renders call updates as plain text lines.
type transcriptPrinter struct {
	mu       sync.Mutex
	w        io.Writer
	done     chan struct{}
	doneOnce sync.Once
}

func newTranscriptPrinter(w io.Writer) *transcriptPrinter {
	return &transcriptPrinter{w: w, done: make(chan struct{})}
}

func (p *transcriptPrinter) ended() <-chan struct{} { return p.done }

func (p *transcriptPrinter) OnStateChange(from, to domain.CallState) {
	p.printf("* %s -> %s\n", from, to)
	if to == domain.CallEnded || (from != domain.CallIdle && to == domain.CallIdle) {
		p.doneOnce.Do(func() { close(p.done) })
	}
}

func (p *transcriptPrinter) OnTranscript(e domain.TranscriptEntry) {
	p.printf("[%s] %s\n", e.Role, e.Content)
}

func (p *transcriptPrinter) OnLive(slot *domain.LiveSlot) {
	if slot != nil {
		p.printf("  ... %s: %s\n", slot.Role, slot.Text)
	}
}

func (p *transcriptPrinter) OnQualification(q domain.Qualification, complete bool) {
	line := formatQualification(q)
	if complete {
		line += " (complete)"
	}
	p.printf("  qualification: %s\n", line)
}

func (p *transcriptPrinter) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, format, args...)
}

func formatQualification(q domain.Qualification) string {
	if len(q) == 0 {
		return "(none)"
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+q[k])
	}
	return strings.Join(parts, " ")
}

func printSummary(w io.Writer, s call.Snapshot) {
	fmt.Fprintf(w, "\ncall %s %s", s.SessionID, s.State)
	if s.EndReason != "" {
		fmt.Fprintf(w, " (%s)", s.EndReason)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "entries: %d\n", len(s.Transcript))
	fmt.Fprintf(w, "qualification: %s\n", formatQualification(s.Qualification))
	if s.LastError != "" {
		fmt.Fprintf(w, "last error: %s\n", s.LastError)
	}
}
