// Command admin manages forum accounts from the shell: roles, locks and
// listing staff.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"qaforum/internal/cache"
	"qaforum/internal/config"
	"qaforum/internal/database"
	"qaforum/internal/repository"
	"qaforum/internal/service"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  go run ./cmd/admin roles <user_id> <Admin,Moderator|User>  - Replace a user's roles")
	fmt.Println("  go run ./cmd/admin lock <user_id>                          - Lock an account")
	fmt.Println("  go run ./cmd/admin unlock <user_id>                        - Unlock an account")
	fmt.Println("  go run ./cmd/admin list [search]                           - List accounts")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	// Connect Redis so role and lock changes evict cached users.
	cache.InitRedis(cfg.RedisURL)

	admin := service.NewAdminService(repository.NewUserRepository(db))
	ctx := context.Background()

	if err := run(ctx, admin, os.Args[1], os.Args[2:]); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

func run(ctx context.Context, admin *service.AdminService, command string, args []string) error {
	switch command {
	case "roles":
		if len(args) < 2 {
			return fmt.Errorf("usage: roles <user_id> <roles>")
		}
		id, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		// Actor 0 never matches a real account, so self-demotion rules do not apply.
		u, err := admin.SetRoles(ctx, 0, id, strings.Split(args[1], ","))
		if err != nil {
			return err
		}
		fmt.Printf("✅ %s (ID: %d) now has roles %s\n", u.Username, u.ID, strings.Join(u.Roles, ", "))

	case "lock", "unlock":
		if len(args) < 1 {
			return fmt.Errorf("usage: %s <user_id>", command)
		}
		id, err := parseUserID(args[0])
		if err != nil {
			return err
		}
		var u *service.AdminUser
		if command == "lock" {
			u, err = admin.Lock(ctx, 0, id)
		} else {
			u, err = admin.Unlock(ctx, id)
		}
		if err != nil {
			return err
		}
		fmt.Printf("✅ %s (ID: %d) locked=%t\n", u.Username, u.ID, u.Locked)

	case "list":
		search := strings.Join(args, " ")
		for page := 1; ; page++ {
			res, err := admin.ListUsers(ctx, search, page)
			if err != nil {
				return err
			}
			for _, u := range res.Items {
				fmt.Printf("ID: %d | Username: %s | Email: %s | Roles: %s | Locked: %t\n",
					u.ID, u.Username, u.Email, strings.Join(u.Roles, ","), u.Locked)
			}
			if int64(page*res.PageSize) >= res.Total {
				fmt.Printf("📋 %d account(s)\n", res.Total)
				return nil
			}
		}

	default:
		usage()
		return fmt.Errorf("unknown command: %s", command)
	}
	return nil
}

func parseUserID(raw string) (uint, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid user id %q", raw)
	}
	return uint(id), nil
}
