package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"flowmod/api/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func wrap(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}

func nullable(value *string) any {
	if value == nil || *value == "" {
		return nil
	}
	return *value
}

func fromNull(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	v := value.String
	return &v
}

const messageColumns = `id, community_id, group_id, participant_id, sender_channel, body, created_at, intervention_category, intervened, responds_to_message_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (models.Message, error) {
	var (
		msg                              models.Message
		channel                          string
		participant, category, respondTo sql.NullString
	)
	if err := row.Scan(&msg.ID, &msg.CommunityID, &msg.GroupID, &participant, &channel, &msg.Body, &msg.CreatedAt, &category, &msg.Intervened, &respondTo); err != nil {
		return models.Message{}, err
	}
	msg.SenderChannel = models.SenderChannel(channel)
	msg.ParticipantID = fromNull(participant)
	msg.InterventionCategory = fromNull(category)
	msg.RespondsToMessageID = fromNull(respondTo)
	return msg, nil
}

// AppendMessage inserts msg. A zero CreatedAt takes the database clock.
func (s *PostgresStore) AppendMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	var createdAt any
	if !msg.CreatedAt.IsZero() {
		createdAt = msg.CreatedAt
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO messages (id, community_id, group_id, participant_id, sender_channel, body, created_at, intervention_category, intervened, responds_to_message_id)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7::timestamptz, NOW()), $8, $9, $10)
		RETURNING `+messageColumns,
		msg.ID, msg.CommunityID, msg.GroupID, nullable(msg.ParticipantID), string(msg.SenderChannel), msg.Body,
		createdAt, nullable(msg.InterventionCategory), msg.Intervened, nullable(msg.RespondsToMessageID),
	)
	stored, err := scanMessage(row)
	if err != nil {
		return models.Message{}, classify(err, "insert message")
	}
	return stored, nil
}

func (s *PostgresStore) GetMessage(ctx context.Context, communityID, messageID string) (models.Message, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE community_id=$1 AND id=$2`, communityID, messageID)
	return scanMessage(row)
}

// ListMessages returns messages matching filter ordered by created_at, id.
func (s *PostgresStore) ListMessages(ctx context.Context, filter MessageFilter) ([]models.Message, error) {
	clauses := []string{"community_id = $1"}
	args := []any{filter.CommunityID}
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if len(filter.GroupIDs) > 0 {
		add("group_id = ANY($%d)", filter.GroupIDs)
	}
	if filter.ParticipantID != "" {
		add("participant_id = $%d", filter.ParticipantID)
	}
	if !filter.From.IsZero() {
		add("created_at >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("created_at < $%d", filter.To)
	}
	if filter.OriginalsOnly || filter.FlaggedOnly {
		clauses = append(clauses, "responds_to_message_id IS NULL")
	}
	if filter.FlaggedOnly {
		clauses = append(clauses, "intervention_category IS NOT NULL")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE `+strings.Join(clauses, " AND ")+` ORDER BY created_at ASC, id ASC`, args...)
	if err != nil {
		return nil, wrap("list messages", err)
	}
	return collectMessages(rows)
}

// ListResponses returns every response to the given originals.
func (s *PostgresStore) ListResponses(ctx context.Context, communityID string, originalIDs []string) ([]models.Message, error) {
	if len(originalIDs) == 0 {
		return []models.Message{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE community_id = $1 AND responds_to_message_id = ANY($2)
		ORDER BY created_at ASC, id ASC
	`, communityID, originalIDs)
	if err != nil {
		return nil, wrap("list responses", err)
	}
	return collectMessages(rows)
}

func collectMessages(rows *sql.Rows) ([]models.Message, error) {
	defer rows.Close()
	items := make([]models.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, wrap("scan message", err)
		}
		items = append(items, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate messages", err)
	}
	return items, nil
}

const participantColumns = `id, community_id, display_name, public_channel_id, verified_channel_id, joined_at`

func scanParticipant(row rowScanner) (models.Participant, error) {
	var (
		p        models.Participant
		verified sql.NullString
	)
	if err := row.Scan(&p.ID, &p.CommunityID, &p.DisplayName, &p.PublicChannelID, &verified, &p.JoinedAt); err != nil {
		return models.Participant{}, err
	}
	p.VerifiedChannelID = fromNull(verified)
	return p, nil
}

func (s *PostgresStore) CreateParticipant(ctx context.Context, p models.Participant) (models.Participant, error) {
	var joinedAt any
	if !p.JoinedAt.IsZero() {
		joinedAt = p.JoinedAt
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO participants (id, community_id, display_name, public_channel_id, verified_channel_id, joined_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6::timestamptz, NOW()))
		RETURNING `+participantColumns,
		p.ID, p.CommunityID, p.DisplayName, p.PublicChannelID, nullable(p.VerifiedChannelID), joinedAt,
	)
	stored, err := scanParticipant(row)
	if err != nil {
		return models.Participant{}, classify(err, "insert participant")
	}
	return stored, nil
}

func (s *PostgresStore) GetParticipant(ctx context.Context, communityID, participantID string) (models.Participant, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+participantColumns+` FROM participants WHERE community_id=$1 AND id=$2`, communityID, participantID)
	return scanParticipant(row)
}

// ListParticipants returns the roster ordered by join date.
func (s *PostgresStore) ListParticipants(ctx context.Context, communityID string) ([]models.Participant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+participantColumns+`
		FROM participants
		WHERE community_id=$1
		ORDER BY joined_at ASC, id ASC
	`, communityID)
	if err != nil {
		return nil, wrap("list participants", err)
	}
	defer rows.Close()

	items := make([]models.Participant, 0)
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, wrap("scan participant", err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate participants", err)
	}
	return items, nil
}

// SetVerifiedChannel sets or, with a nil value, clears the verified handle.
func (s *PostgresStore) SetVerifiedChannel(ctx context.Context, communityID, participantID string, verified *string) (models.Participant, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE participants SET verified_channel_id=$3
		WHERE community_id=$1 AND id=$2
		RETURNING `+participantColumns,
		communityID, participantID, nullable(verified),
	)
	return scanParticipant(row)
}

const groupColumns = `id, community_id, master_group_id, external_group_id, name, created_at`

func scanGroup(row rowScanner) (models.Group, error) {
	var (
		g                      models.Group
		master, external, name sql.NullString
	)
	if err := row.Scan(&g.ID, &g.CommunityID, &master, &external, &name, &g.CreatedAt); err != nil {
		return models.Group{}, err
	}
	g.MasterGroupID = fromNull(master)
	g.ExternalGroupID = fromNull(external)
	g.Name = fromNull(name)
	return g, nil
}

func (s *PostgresStore) CreateGroup(ctx context.Context, g models.Group) (models.Group, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO groups (id, community_id, master_group_id, external_group_id, name)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+groupColumns,
		g.ID, g.CommunityID, nullable(g.MasterGroupID), nullable(g.ExternalGroupID), nullable(g.Name),
	)
	stored, err := scanGroup(row)
	if err != nil {
		return models.Group{}, classify(err, "insert group")
	}
	return stored, nil
}

func (s *PostgresStore) GetGroup(ctx context.Context, communityID, groupID string) (models.Group, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+groupColumns+` FROM groups WHERE community_id=$1 AND id=$2`, communityID, groupID)
	return scanGroup(row)
}

func (s *PostgresStore) ListGroups(ctx context.Context, communityID string) ([]models.Group, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+groupColumns+`
		FROM groups
		WHERE community_id=$1
		ORDER BY created_at ASC, id ASC
	`, communityID)
	if err != nil {
		return nil, wrap("list groups", err)
	}
	defer rows.Close()

	items := make([]models.Group, 0)
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, wrap("scan group", err)
		}
		items = append(items, g)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate groups", err)
	}
	return items, nil
}

// AssignGroup moves a group under a master group of the same community.
func (s *PostgresStore) AssignGroup(ctx context.Context, communityID, masterGroupID, groupID string) (models.Group, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE groups g SET master_group_id=mg.id
		FROM master_groups mg
		WHERE g.community_id=$1 AND g.id=$3 AND mg.community_id=$1 AND mg.id=$2
		RETURNING g.id, g.community_id, g.master_group_id, g.external_group_id, g.name, g.created_at
	`, communityID, masterGroupID, groupID)
	return scanGroup(row)
}

func (s *PostgresStore) CreateMasterGroup(ctx context.Context, mg models.MasterGroup) (models.MasterGroup, error) {
	var stored models.MasterGroup
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO master_groups (id, community_id, name, description)
		VALUES ($1, $2, $3, $4)
		RETURNING id, community_id, name, description, created_at
	`, mg.ID, mg.CommunityID, mg.Name, mg.Description).Scan(&stored.ID, &stored.CommunityID, &stored.Name, &stored.Description, &stored.CreatedAt)
	if err != nil {
		return models.MasterGroup{}, classify(err, "insert master group")
	}
	stored.Groups = []models.Group{}
	return stored, nil
}

func (s *PostgresStore) GetMasterGroup(ctx context.Context, communityID, masterGroupID string) (models.MasterGroup, error) {
	var mg models.MasterGroup
	err := s.db.QueryRowContext(ctx, `
		SELECT id, community_id, name, description, created_at
		FROM master_groups WHERE community_id=$1 AND id=$2
	`, communityID, masterGroupID).Scan(&mg.ID, &mg.CommunityID, &mg.Name, &mg.Description, &mg.CreatedAt)
	if err != nil {
		return models.MasterGroup{}, err
	}
	groups, err := s.ListGroups(ctx, communityID)
	if err != nil {
		return models.MasterGroup{}, err
	}
	mg.Groups = membersOf(mg.ID, groups)
	return mg, nil
}

// ListMasterGroups returns every master group with its member groups.
func (s *PostgresStore) ListMasterGroups(ctx context.Context, communityID string) ([]models.MasterGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, community_id, name, description, created_at
		FROM master_groups
		WHERE community_id=$1
		ORDER BY name ASC, id ASC
	`, communityID)
	if err != nil {
		return nil, wrap("list master groups", err)
	}
	defer rows.Close()

	items := make([]models.MasterGroup, 0)
	for rows.Next() {
		var mg models.MasterGroup
		if err := rows.Scan(&mg.ID, &mg.CommunityID, &mg.Name, &mg.Description, &mg.CreatedAt); err != nil {
			return nil, wrap("scan master group", err)
		}
		items = append(items, mg)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate master groups", err)
	}

	groups, err := s.ListGroups(ctx, communityID)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].Groups = membersOf(items[i].ID, groups)
	}
	return items, nil
}

func membersOf(masterGroupID string, groups []models.Group) []models.Group {
	members := make([]models.Group, 0)
	for _, g := range groups {
		if g.MasterGroupID != nil && *g.MasterGroupID == masterGroupID {
			members = append(members, g)
		}
	}
	return members
}
