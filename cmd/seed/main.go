// Command seed fills a Creaverse database with fake creators, follows, posts,
// engagement, conversations and a proposal for local development.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"creaverse/config"
	"creaverse/db"
	"creaverse/logging"
	"creaverse/models"
	"creaverse/services"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
)

type Config struct {
	ConfigPath     string
	Users          int
	PostsPerUser   int
	FollowsPerUser int
	Messages       int
	Password       string
	Seed           int64
}

type seeder struct {
	conf          Config
	rnd           *rand.Rand
	profiles      *services.ProfileService
	follows       *services.FollowService
	posts         *services.PostService
	conversations *services.ConversationService
	messages      *services.MessageService
	governance    *services.GovernanceService
	users         []*models.User
}

func main() {
	conf := parseFlags()

	if err := config.LoadConfig(conf.ConfigPath); err != nil {
		panic("Failed to load configuration: " + err.Error())
	}
	logging.Setup(config.AppConfig.Logs.Level, config.AppConfig.Logs.Format)
	if err := db.ConnectDB(); err != nil {
		panic("Failed to connect to the database: " + err.Error())
	}

	if conf.Seed != 0 {
		gofakeit.GlobalFaker = gofakeit.New(uint64(conf.Seed))
	}

	tokens := services.NewTokenService(config.AppConfig.Auth.JWTSecret, config.AppConfig.Auth.TokenTTL)
	notifications := services.NewNotificationService()
	// события обрабатываются в процессе: уведомления и баллы появляются сразу
	bus := services.NewEventBus(nil, services.NewDispatcher(notifications, services.NewRewardService(nil), services.NewWSConnManager()))
	posts := services.NewPostService(nil, bus)

	s := &seeder{
		conf:          conf,
		rnd:           rand.New(rand.NewSource(time.Now().UnixNano())),
		profiles:      services.NewProfileService(tokens),
		follows:       services.NewFollowService(bus, posts),
		posts:         posts,
		conversations: services.NewConversationService(services.NewPresenceService(nil)),
		messages:      services.NewMessageService(bus),
		governance:    services.NewGovernanceService(bus, config.AppConfig.Governance.DefaultQuorum, config.AppConfig.Governance.VotingPeriod),
	}

	ctx := context.Background()
	start := time.Now()
	steps := []struct {
		name string
		run  func(context.Context) (int, error)
	}{
		{"users", s.seedUsers},
		{"follows", s.seedFollows},
		{"posts", s.seedPosts},
		{"conversations", s.seedConversations},
		{"proposals", s.seedProposal},
	}
	for _, step := range steps {
		n, err := step.run(ctx)
		if err != nil {
			slog.Error("Seeding failed", "step", step.name, "error", err)
			return
		}
		slog.Info("Seeded", "step", step.name, "count", n)
	}
	slog.Info("Done", "elapsed", time.Since(start).Round(time.Millisecond), "password", conf.Password)
}

func parseFlags() Config {
	conf := Config{}

	flag.StringVar(&conf.ConfigPath, "config", "config.yaml", "Path to the configuration file")
	flag.IntVar(&conf.Users, "users", 50, "Number of creators to register")
	flag.IntVar(&conf.PostsPerUser, "posts", 5, "Posts per creator")
	flag.IntVar(&conf.FollowsPerUser, "follows", 10, "Follows per creator")
	flag.IntVar(&conf.Messages, "messages", 20, "Messages per conversation")
	flag.StringVar(&conf.Password, "password", "password123", "Password of every seeded user")
	flag.Int64Var(&conf.Seed, "seed", 0, "Faker seed (0 for random)")

	flag.Parse()
	return conf
}

func (s *seeder) seedUsers(ctx context.Context) (int, error) {
	for i := 0; i < s.conf.Users; i++ {
		name := gofakeit.FirstName()
		in := services.RegisterInput{
			Username:    fmt.Sprintf("%s_%s", strings.ToLower(name), gofakeit.Numerify("####")),
			Password:    s.conf.Password,
			DisplayName: name + " " + gofakeit.LastName(),
		}
		user, err := s.profiles.Register(ctx, in)
		if errors.Is(err, services.ErrAlreadyExists) {
			continue
		}
		if err != nil {
			return len(s.users), err
		}

		bio := gofakeit.Sentence(12)
		avatar := fmt.Sprintf("https://i.pravatar.cc/300?u=%s", user.Username)
		if _, err = s.profiles.UpdateProfile(ctx, user.ID, services.UpdateProfileInput{Bio: &bio, AvatarURL: &avatar}); err != nil {
			return len(s.users), err
		}
		s.users = append(s.users, user)
	}
	return len(s.users), nil
}

func (s *seeder) pick() *models.User {
	return s.users[s.rnd.Intn(len(s.users))]
}

func (s *seeder) seedFollows(ctx context.Context) (int, error) {
	count := 0
	for _, u := range s.users {
		for i := 0; i < s.conf.FollowsPerUser; i++ {
			target := s.pick()
			err := s.follows.Follow(ctx, u.ID, target.ID)
			if errors.Is(err, services.ErrAlreadyExists) || errors.Is(err, services.ErrInvalidInput) {
				continue
			}
			if err != nil {
				return count, err
			}
			count++
		}
	}
	return count, nil
}

func (s *seeder) seedPosts(ctx context.Context) (int, error) {
	slugs := make([]string, 0, len(db.DefaultCategories))
	for _, c := range db.DefaultCategories {
		slugs = append(slugs, c.Slug)
	}

	count := 0
	for _, u := range s.users {
		for i := 0; i < s.conf.PostsPerUser; i++ {
			in := services.CreatePostInput{
				AuthorID: u.ID,
				Caption:  gofakeit.Sentence(10),
				Category: slugs[s.rnd.Intn(len(slugs))],
				Tags:     []string{gofakeit.Word(), gofakeit.Color()},
			}
			if s.rnd.Intn(3) == 0 {
				in.MediaURL = fmt.Sprintf("https://picsum.photos/seed/%s/800/800", uuid.NewString())
				in.MediaType = models.MediaImage
			}
			post, err := s.posts.CreatePost(ctx, in)
			if err != nil {
				return count, err
			}
			count++

			if err := s.engage(ctx, post.ID); err != nil {
				return count, err
			}
		}
	}
	return count, nil
}

// engage добавляет лайки, комментарии и отзывы от случайных пользователей
func (s *seeder) engage(ctx context.Context, postID int64) error {
	for i := 0; i < s.rnd.Intn(5); i++ {
		fan := s.pick()
		if _, err := s.posts.LikePost(ctx, fan.ID, postID); err != nil && !errors.Is(err, services.ErrAlreadyExists) {
			return err
		}
	}
	for i := 0; i < s.rnd.Intn(3); i++ {
		if _, err := s.posts.AddComment(ctx, s.pick().ID, postID, gofakeit.Sentence(6)); err != nil {
			return err
		}
	}
	if s.rnd.Intn(4) == 0 {
		_, err := s.posts.ReviewPost(ctx, services.ReviewInput{
			UserID:  s.pick().ID,
			PostID:  postID,
			Rating:  gofakeit.Number(1, 5),
			Content: gofakeit.Sentence(8),
		})
		if err != nil && !errors.Is(err, services.ErrAlreadyExists) {
			return err
		}
	}
	return nil
}

func (s *seeder) seedConversations(ctx context.Context) (int, error) {
	count := 0
	for i := 0; i+1 < len(s.users); i += 2 {
		a, b := s.users[i], s.users[i+1]
		conv, _, err := s.conversations.FindOrCreate(ctx, a.ID, b.ID)
		if err != nil {
			return count, err
		}
		for m := 0; m < s.conf.Messages; m++ {
			sender := a
			if s.rnd.Intn(2) == 0 {
				sender = b
			}
			_, err := s.messages.Send(ctx, services.SendInput{
				ConversationID: conv.ID,
				SenderID:       sender.ID,
				Content:        gofakeit.Sentence(s.rnd.Intn(12) + 1),
				ClientID:       uuid.NewString(),
			})
			if err != nil {
				return count, err
			}
		}
		count++
	}
	return count, nil
}

func (s *seeder) seedProposal(ctx context.Context) (int, error) {
	if len(s.users) == 0 {
		return 0, nil
	}
	now := time.Now()
	proposal, err := s.governance.CreateProposal(ctx, services.CreateProposalInput{
		AuthorID:    s.pick().ID,
		Title:       strings.TrimSuffix(gofakeit.Sentence(6), "."),
		Description: gofakeit.Paragraph(2, 3, 12, " "),
		StartsAt:    &now,
	})
	if err != nil {
		return 0, err
	}

	voteTypes := []models.VoteType{models.VoteFor, models.VoteAgainst, models.VoteAbstain}
	for _, u := range s.users {
		if s.rnd.Intn(2) == 0 {
			continue
		}
		_, err := s.governance.CastVote(ctx, proposal.ID, u.ID, voteTypes[s.rnd.Intn(len(voteTypes))])
		if err != nil && !errors.Is(err, services.ErrAlreadyVoted) {
			return 1, err
		}
	}
	return 1, nil
}
