package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"bountyline/internal/app"
	"bountyline/internal/config"
	"bountyline/internal/db"
	"bountyline/internal/domain"
	"bountyline/internal/engine"
	"bountyline/internal/migrate"
	"bountyline/internal/repo"
	"bountyline/internal/server"
	"bountyline/internal/workflow"
)

var rootCmd = &cobra.Command{
	Use:   "bl",
	Short: "Bountyline CLI",
	Long: `Bountyline tracks rewards (bounties) and the applications submitted against them.
Core concepts:
- Workspace: your .bountyline directory holding the database; configs live in the DB and are imported explicitly.
- Space: the community that owns rewards, roles, and the event log.
- Reward: a bounty with a payout, reviewer set, submitter policy, and an optional submission cap.
- Application: one person's work against a reward; statuses flow applied -> inProgress -> review -> complete -> paid.
- Workflow: the inferred step sequence (apply, submit, review, payment) shown per reward.
- Event log: diary of changes, view with 'bl log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("BOUNTYLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("space", "", "space id (overrides config default)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("space", rootCmd.PersistentFlags().Lookup("space"))
}

func registerCommands() {
	rootCmd.AddCommand(spaceCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(rewardCmd())
	rootCmd.AddCommand(appCmd())
	rootCmd.AddCommand(workflowCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(serveCmd())
}

func spaceCmd() *cobra.Command {
	sp := &cobra.Command{Use: "space", Short: "Manage spaces"}
	sp.AddCommand(spaceInitCmd())
	sp.AddCommand(spaceListCmd())
	sp.AddCommand(spaceShowCmd())
	return sp
}

func spaceInitCmd() *cobra.Command {
	var id, name string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a space",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == "" {
				return fmt.Errorf("--id required")
			}
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			e := engine.New(conn, config.Default(id), nil)
			s, err := e.InitSpace(cmd.Context(), id, name, viper.GetString("actor-id"))
			if err != nil {
				return err
			}
			return printJSONOrTable(s)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "space id")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func spaceListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List spaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListSpaces(ctx)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	return cmd
}

func spaceShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a space",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.Repo.GetSpace(ctx, e.Config.Space.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect space config",
		Long:  "Config is the rulebook stored in the DB: space identity, role catalog with memberships, reward defaults, and webhook targets. Import from bountyline.yml if desired.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configImportCmd())
	cfg.AddCommand(configValidateCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return printJSONOrTable(e.Config)
			})
		},
	}
	return cmd
}

func configImportCmd() *cobra.Command {
	var filePath string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import space config from YAML into the DB",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(filePath)
			if err != nil {
				return err
			}
			cfg, err := config.FromYAML(data)
			if err != nil {
				return err
			}
			spaceID := cfg.Space.ID
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if spaceID == "" {
					spaceID = e.Config.Space.ID
				}
				if err := e.Repo.UpsertSpaceConfig(ctx, spaceID, cfg); err != nil {
					return err
				}
				return printJSONOrTable(cfg)
			})
		},
	}
	cmd.Flags().StringVar(&filePath, "file", "", "path to YAML config")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func configValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate stored config",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Config.Validate()
			})
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	return cmd
}

func rewardCmd() *cobra.Command {
	rw := &cobra.Command{
		Use:   "reward",
		Short: "Manage rewards",
		Long:  "Rewards are bounties. They start as suggestions, get published to open, fill up with applications, and end complete or paid. The submission cap limits how many submissions can win.",
	}
	rw.AddCommand(rewardCreateCmd())
	rw.AddCommand(rewardListCmd())
	rw.AddCommand(rewardShowCmd())
	rw.AddCommand(rewardPublishCmd())
	rw.AddCommand(rewardUpdateCmd())
	rw.AddCommand(rewardUsersCmd())
	rw.AddCommand(rewardCloseCmd())
	rw.AddCommand(rewardPaidCmd())
	rw.AddCommand(rewardLockCmd())
	rw.AddCommand(rewardRepairCmd())
	return rw
}

func rewardCreateCmd() *cobra.Command {
	var opts engine.RewardCreateOptions
	var amount float64
	var chainID int64
	var maxSubmissions int
	var assignTo, restrictRoles []string
	var reviewerUsers, reviewerRoles []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a reward",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			if cmd.Flags().Changed("amount") {
				opts.RewardAmount = &amount
			}
			if cmd.Flags().Changed("chain-id") {
				opts.ChainID = &chainID
			}
			if cmd.Flags().Changed("max-submissions") {
				opts.MaxSubmissions = &maxSubmissions
			}
			if len(assignTo) > 0 {
				opts.SubmitterPolicy = &domain.SubmitterPolicy{Kind: domain.SubmitterPolicyAssigned, UserIDs: assignTo}
			} else if len(restrictRoles) > 0 {
				opts.SubmitterPolicy = &domain.SubmitterPolicy{Kind: domain.SubmitterPolicyRoleRestricted, RoleIDs: restrictRoles}
			}
			opts.Reviewers = reviewerTargets(reviewerUsers, reviewerRoles)
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if opts.SpaceID == "" {
					opts.SpaceID = e.Config.Space.ID
				}
				rw, err := e.CreateReward(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(rw)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "reward id (random UUID if omitted)")
	cmd.Flags().StringVar(&opts.SpaceID, "space", "", "space id")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Status, "status", "suggestion", "initial status (suggestion or open)")
	cmd.Flags().Float64Var(&amount, "amount", 0, "token amount")
	cmd.Flags().Int64Var(&chainID, "chain-id", 0, "chain id for token payouts")
	cmd.Flags().StringVar(&opts.RewardToken, "token", "", "token symbol")
	cmd.Flags().StringVar(&opts.CustomReward, "custom-reward", "", "custom reward text")
	cmd.Flags().BoolVar(&opts.ApproveSubmitters, "approve-submitters", false, "require application approval before work")
	cmd.Flags().BoolVar(&opts.AllowMultipleApplications, "allow-multiple", false, "allow multiple applications per user")
	cmd.Flags().IntVar(&maxSubmissions, "max-submissions", 0, "submission cap (0 = unlimited)")
	cmd.Flags().StringVar(&opts.DueDate, "due-date", "", "due date (RFC3339)")
	cmd.Flags().BoolVar(&opts.KYCRequired, "kyc", false, "require KYC credential before payment")
	cmd.Flags().StringArrayVar(&assignTo, "assign", []string{}, "assign to user id (repeatable)")
	cmd.Flags().StringArrayVar(&restrictRoles, "restrict-role", []string{}, "restrict submitters to role id (repeatable)")
	cmd.Flags().StringArrayVar(&reviewerUsers, "reviewer", []string{}, "reviewer user id (repeatable)")
	cmd.Flags().StringArrayVar(&reviewerRoles, "reviewer-role", []string{}, "reviewer role id (repeatable)")
	return cmd
}

func rewardListCmd() *cobra.Command {
	var f repo.RewardFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rewards",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if f.SpaceID == "" {
					f.SpaceID = e.Config.Space.ID
				}
				rewards, err := e.Repo.ListRewards(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(rewards)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Status", "Type", "Cap", "Policy"})
				for _, rw := range rewards {
					limit := ""
					if rw.MaxSubmissions != nil {
						limit = fmt.Sprintf("%d", *rw.MaxSubmissions)
					}
					tw.AppendRow(table.Row{rw.ID, rw.Title, rw.Status, rw.RewardType(), limit, rw.SubmitterPolicy.Kind})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.SpaceID, "space", "", "space id")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.CreatedBy, "created-by", "", "creator filter")
	return cmd
}

func rewardShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a reward",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rw, err := e.Repo.GetReward(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(rw)
			})
		},
	}
	return cmd
}

func rewardPublishCmd() *cobra.Command {
	var reviewerUsers, reviewerRoles []string
	var pageTitle string
	cmd := &cobra.Command{
		Use:   "publish <id>",
		Short: "Validate and open a reward",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rw, err := e.PublishReward(ctx, engine.PublishOptions{
					ID:        args[0],
					Reviewers: reviewerTargets(reviewerUsers, reviewerRoles),
					PageTitle: pageTitle,
					ActorID:   viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(rw)
			})
		},
	}
	cmd.Flags().StringArrayVar(&reviewerUsers, "reviewer", []string{}, "reviewer user id (repeatable)")
	cmd.Flags().StringArrayVar(&reviewerRoles, "reviewer-role", []string{}, "reviewer role id (repeatable)")
	cmd.Flags().StringVar(&pageTitle, "page-title", "", "attached page title (satisfies the title rule)")
	return cmd
}

func rewardUpdateCmd() *cobra.Command {
	var title, token, custom, dueDate string
	var amount float64
	var chainID int64
	var maxSubmissions int
	var approve, allowMultiple, kyc bool
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update reward settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.RewardUpdateOptions{ID: args[0], ActorID: viper.GetString("actor-id")}
			if cmd.Flags().Changed("title") {
				opts.Title = &title
			}
			if cmd.Flags().Changed("amount") {
				opts.RewardAmount = &amount
			}
			if cmd.Flags().Changed("chain-id") {
				opts.ChainID = &chainID
			}
			if cmd.Flags().Changed("token") {
				opts.RewardToken = &token
			}
			if cmd.Flags().Changed("custom-reward") {
				opts.CustomReward = &custom
			}
			if cmd.Flags().Changed("due-date") {
				opts.DueDate = &dueDate
			}
			if cmd.Flags().Changed("max-submissions") {
				opts.MaxSubmissions = &maxSubmissions
			}
			if cmd.Flags().Changed("approve-submitters") {
				opts.ApproveSubmitters = &approve
			}
			if cmd.Flags().Changed("allow-multiple") {
				opts.AllowMultipleApplications = &allowMultiple
			}
			if cmd.Flags().Changed("kyc") {
				opts.KYCRequired = &kyc
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rw, err := e.UpdateRewardSettings(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(rw)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().Float64Var(&amount, "amount", 0, "token amount")
	cmd.Flags().Int64Var(&chainID, "chain-id", 0, "chain id")
	cmd.Flags().StringVar(&token, "token", "", "token symbol")
	cmd.Flags().StringVar(&custom, "custom-reward", "", "custom reward text")
	cmd.Flags().StringVar(&dueDate, "due-date", "", "due date (RFC3339, empty clears)")
	cmd.Flags().IntVar(&maxSubmissions, "max-submissions", 0, "submission cap (0 clears)")
	cmd.Flags().BoolVar(&approve, "approve-submitters", false, "require application approval")
	cmd.Flags().BoolVar(&allowMultiple, "allow-multiple", false, "allow multiple applications per user")
	cmd.Flags().BoolVar(&kyc, "kyc", false, "require KYC credential")
	return cmd
}

func rewardUsersCmd() *cobra.Command {
	var reviewerUsers, reviewerRoles []string
	var assignTo, restrictRoles []string
	var open bool
	cmd := &cobra.Command{
		Use:   "users <id>",
		Short: "Replace reviewers and submitter policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.SetRewardUsersOptions{ID: args[0], ActorID: viper.GetString("actor-id")}
			if cmd.Flags().Changed("reviewer") || cmd.Flags().Changed("reviewer-role") {
				opts.Reviewers = reviewerTargets(reviewerUsers, reviewerRoles)
			}
			switch {
			case len(assignTo) > 0:
				opts.SubmitterPolicy = &domain.SubmitterPolicy{Kind: domain.SubmitterPolicyAssigned, UserIDs: assignTo}
			case len(restrictRoles) > 0:
				opts.SubmitterPolicy = &domain.SubmitterPolicy{Kind: domain.SubmitterPolicyRoleRestricted, RoleIDs: restrictRoles}
			case open:
				p := domain.OpenSubmitterPolicy()
				opts.SubmitterPolicy = &p
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rw, err := e.SetRewardUsers(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(rw)
			})
		},
	}
	cmd.Flags().StringArrayVar(&reviewerUsers, "reviewer", []string{}, "reviewer user id (repeatable)")
	cmd.Flags().StringArrayVar(&reviewerRoles, "reviewer-role", []string{}, "reviewer role id (repeatable)")
	cmd.Flags().StringArrayVar(&assignTo, "assign", []string{}, "assign to user id (repeatable)")
	cmd.Flags().StringArrayVar(&restrictRoles, "restrict-role", []string{}, "restrict submitters to role id (repeatable)")
	cmd.Flags().BoolVar(&open, "open", false, "open submitter policy")
	return cmd
}

func rewardCloseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "close <id>",
		Short: "Close out a reward (rejects unresolved applications)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rw, err := e.CloseOutReward(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(rw)
			})
		},
	}
	return cmd
}

func rewardPaidCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "paid <id>",
		Short: "Mark a reward and its applications as paid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rw, err := e.MarkRewardAsPaid(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(rw)
			})
		},
	}
	return cmd
}

func rewardLockCmd() *cobra.Command {
	var unlock bool
	cmd := &cobra.Command{
		Use:   "lock <id>",
		Short: "Lock or unlock submissions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rw, err := e.LockSubmissions(ctx, args[0], !unlock, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(rw)
			})
		},
	}
	cmd.Flags().BoolVar(&unlock, "unlock", false, "unlock instead of lock")
	return cmd
}

func rewardRepairCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repair <id>",
		Short: "Recompute reward status from its applications",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rw, err := e.RecomputeRewardStatus(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(rw)
			})
		},
	}
	return cmd
}

func appCmd() *cobra.Command {
	a := &cobra.Command{
		Use:   "app",
		Short: "Manage applications",
		Long:  "Applications are work against rewards. Apply with a message, submit work, get reviewed, get paid.",
	}
	a.AddCommand(appCreateCmd())
	a.AddCommand(appListCmd())
	a.AddCommand(appShowCmd())
	a.AddCommand(appUpdateCmd())
	a.AddCommand(appReviewCmd())
	return a
}

func appCreateCmd() *cobra.Command {
	var opts engine.ApplicationCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Apply to or submit work for a reward",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.RewardID == "" {
				return fmt.Errorf("--reward required")
			}
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.CreateApplication(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "application id (random UUID if omitted)")
	cmd.Flags().StringVar(&opts.RewardID, "reward", "", "reward id")
	cmd.Flags().StringVar(&opts.Message, "message", "", "application message")
	cmd.Flags().StringVar(&opts.Submission, "submission", "", "submission content")
	cmd.Flags().StringVar(&opts.WalletAddress, "wallet", "", "payout wallet address")
	_ = cmd.MarkFlagRequired("reward")
	return cmd
}

func appListCmd() *cobra.Command {
	var f repo.ApplicationFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List applications",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if f.SpaceID == "" && f.RewardID == "" {
					f.SpaceID = e.Config.Space.ID
				}
				apps, err := e.Repo.ListApplications(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(apps)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Reward", "Status", "Creator", "Updated"})
				for _, a := range apps {
					tw.AppendRow(table.Row{a.ID, a.RewardID, a.Status, a.CreatedBy, a.UpdatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.RewardID, "reward", "", "reward filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&f.CreatedBy, "created-by", "", "creator filter")
	return cmd
}

func appShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.Repo.GetApplication(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	return cmd
}

func appUpdateCmd() *cobra.Command {
	var message, submission, wallet, rewardInfo string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update your own application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := engine.ApplicationUpdateOptions{ID: args[0], ActorID: viper.GetString("actor-id")}
			if cmd.Flags().Changed("message") {
				opts.Message = &message
			}
			if cmd.Flags().Changed("submission") {
				opts.Submission = &submission
			}
			if cmd.Flags().Changed("wallet") {
				opts.WalletAddress = &wallet
			}
			if cmd.Flags().Changed("reward-info") {
				opts.RewardInfo = &rewardInfo
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.UpdateApplication(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&message, "message", "", "application message")
	cmd.Flags().StringVar(&submission, "submission", "", "submission content")
	cmd.Flags().StringVar(&wallet, "wallet", "", "payout wallet address")
	cmd.Flags().StringVar(&rewardInfo, "reward-info", "", "payout transaction info")
	return cmd
}

func appReviewCmd() *cobra.Command {
	var decision string
	cmd := &cobra.Command{
		Use:   "review <id>",
		Short: "Approve or reject an application",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.ReviewApplication(ctx, engine.ReviewOptions{
					ID:       args[0],
					Decision: decision,
					ActorID:  viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&decision, "decision", "", "approve or reject")
	_ = cmd.MarkFlagRequired("decision")
	return cmd
}

func workflowCmd() *cobra.Command {
	wf := &cobra.Command{
		Use:   "workflow",
		Short: "Inspect workflows",
	}
	wf.AddCommand(workflowListCmd())
	wf.AddCommand(workflowShowCmd())
	return wf
}

func workflowListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the workflow catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printJSONOrTable(workflow.Catalog())
		},
	}
	return cmd
}

func workflowShowCmd() *cobra.Command {
	var appID string
	cmd := &cobra.Command{
		Use:   "show <reward-id>",
		Short: "Show the inferred workflow for a reward",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rw, err := e.Repo.GetReward(ctx, args[0])
				if err != nil {
					return err
				}
				var w *workflow.Workflow
				if appID != "" {
					a, err := e.Repo.GetApplication(ctx, appID)
					if err != nil {
						return err
					}
					w = workflow.Progress(&rw, &a)
				} else {
					w = workflow.Infer(&rw)
				}
				if w == nil {
					return fmt.Errorf("no workflow for reward %s", args[0])
				}
				return printJSONOrTable(w)
			})
		},
	}
	cmd.Flags().StringVar(&appID, "application", "", "show progress for this application")
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The diary of everything that happened: reward changes, applications, reviews, rollups.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.LatestEvents(ctx, n, e.Config.Space.ID, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func apikeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apikey",
		Short: "Manage API keys",
	}
	cmd.AddCommand(apikeyCreateCmd())
	cmd.AddCommand(apikeyListCmd())
	cmd.AddCommand(apikeyDeleteCmd())
	return cmd
}

func apikeyCreateCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create API key (printed once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := make([]byte, 32)
			if _, err := rand.Read(raw); err != nil {
				return err
			}
			key := "blk_" + hex.EncodeToString(raw)
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				tx, err := r.DB.BeginTx(ctx, nil)
				if err != nil {
					return err
				}
				defer tx.Rollback()
				rec := domain.APIKey{
					ID:        uuid.New().String(),
					ActorID:   viper.GetString("actor-id"),
					Name:      name,
					KeyHash:   repo.HashAPIKey(key),
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				if err := r.InsertAPIKey(ctx, tx, rec); err != nil {
					return err
				}
				if err := tx.Commit(); err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]string{"id": rec.ID, "key": key})
				}
				fmt.Printf("API key %s created. Store it now, it will not be shown again:\n%s\n", rec.ID, key)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys for the current actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				keys, err := r.ListAPIKeys(ctx, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(keys)
			})
		},
	}
	return cmd
}

func apikeyDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			r := repo.Repo{DB: conn}
			_, cfg, err := app.ResolveSpaceAndConfig(cmd.Context(), viper.GetString("space"), viper.GetString("actor-id"), r)
			if err != nil {
				return err
			}
			logger, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer logger.Sync()
			e := engine.New(conn, cfg, logger)
			authCfg := server.AuthConfig{JWTSecret: os.Getenv("BOUNTYLINE_JWT_SECRET"), Logger: logger}
			if authCfg.JWTSecret == "" {
				return fmt.Errorf("BOUNTYLINE_JWT_SECRET is required for bearer auth")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Bountyline API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	_, cfg, err := app.ResolveSpaceAndConfig(ctx, viper.GetString("space"), viper.GetString("actor-id"), r)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg, nil)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	return fn(ctx, r)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func reviewerTargets(users, roles []string) []domain.ReviewerTarget {
	if len(users) == 0 && len(roles) == 0 {
		return nil
	}
	targets := make([]domain.ReviewerTarget, 0, len(users)+len(roles))
	for _, id := range users {
		targets = append(targets, domain.ReviewerTarget{Group: domain.ReviewerGroupUser, ID: id})
	}
	for _, id := range roles {
		targets = append(targets, domain.ReviewerTarget{Group: domain.ReviewerGroupRole, ID: id})
	}
	return targets
}
