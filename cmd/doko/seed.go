package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/doko-game/doko/internal/model"
	"github.com/doko-game/doko/internal/server"
	"github.com/doko-game/doko/internal/store"
)

// SeedCmd creates a group with four users and prints their session tokens,
// enough to exercise the server without any registration flow.
type SeedCmd struct {
	Config string   `kong:"default='doko.hcl',help='Path to HCL config file'"`
	Group  string   `kong:"default='thursday-round',help='Group name'"`
	Users  []string `kong:"default='anna;ben;clara;david',help='Four user names'"`
}

func (c *SeedCmd) Run() error {
	if len(c.Users) != model.NumSeats {
		return fmt.Errorf("need exactly %d user names, got %d", model.NumSeats, len(c.Users))
	}

	cfg, err := server.LoadConfig(c.Config)
	if err != nil {
		return err
	}

	st, err := store.Open(cfg.Server.DatabasePath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	group := &model.Group{Name: c.Group}
	tokens := make(map[string]string, model.NumSeats)

	err = st.Transact(ctx, func(tx store.Tx) error {
		if err := tx.CreateGroup(ctx, group); err != nil {
			return err
		}
		for _, name := range c.Users {
			u := &model.User{Name: name, SessionToken: uuid.NewString()}
			if err := tx.CreateUser(ctx, u); err != nil {
				return err
			}
			p := &model.Player{UserID: u.ID, GroupID: group.ID, Status: model.StatusOnline}
			if err := tx.CreatePlayer(ctx, p); err != nil {
				return err
			}
			tokens[name] = u.SessionToken
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Printf("group %s (%s)\n", group.Name, group.ID)
	for _, name := range c.Users {
		fmt.Printf("  %-10s token=%s\n", name, tokens[name])
	}
	return nil
}
