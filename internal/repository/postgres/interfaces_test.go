package postgres

import "github.com/and161185/goph-share/internal/repository"

var (
	_ repository.UserRepository              = (*UserRepo)(nil)
	_ repository.LoginHistoryRepository      = (*LoginHistoryRepo)(nil)
	_ repository.AccountRepository           = (*AccountRepo)(nil)
	_ repository.WorkspaceRepository         = (*WorkspaceRepo)(nil)
	_ repository.ResourceRepository          = (*ResourceRepo)(nil)
	_ repository.MemberRepository            = (*MemberRepo)(nil)
	_ repository.InvitationRepository        = (*InvitationRepo)(nil)
	_ repository.ActivityLogRepository       = (*ActivityLogRepo)(nil)
	_ repository.NotificationRepository      = (*NotificationRepo)(nil)
	_ repository.TwoFARepository             = (*TwoFARepo)(nil)
	_ repository.HighLevelPasswordRepository = (*HighLevelPasswordRepo)(nil)
	_ repository.ContactInfoRepository       = (*ContactInfoRepo)(nil)
	_ repository.TxManager                   = (*DB)(nil)
)
