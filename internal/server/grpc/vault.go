package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified name of the Vault RPC service.
const ServiceName = "gophshare.v1.Vault"

// FullMethod returns the wire path of a Vault method.
func FullMethod(name string) string { return "/" + ServiceName + "/" + name }

// PublicMethods are served without a bearer token.
var PublicMethods = []string{
	FullMethod("Register"), FullMethod("Login"),
	FullMethod("VerifyTwoFA"), FullMethod("BeginTwoFA"),
}

type handlerFunc func(s *Server, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

// Every Vault method takes and returns a google.protobuf.Struct.
var vaultMethods = []struct {
	name string
	h    handlerFunc
}{
	{"Register", (*Server).Register},
	{"Login", (*Server).Login},
	{"VerifyTwoFA", (*Server).VerifyTwoFA},
	{"BeginTwoFA", (*Server).BeginTwoFA},
	{"GetSecurityStatus", (*Server).GetSecurityStatus},
	{"EnableTwoFA", (*Server).EnableTwoFA},
	{"DisableTwoFA", (*Server).DisableTwoFA},
	{"SetHighLevelPassword", (*Server).SetHighLevelPassword},
	{"VerifyHighLevelPassword", (*Server).VerifyHighLevelPassword},
	{"ToggleHighLevelPassword", (*Server).ToggleHighLevelPassword},

	{"CreateAccount", (*Server).CreateAccount},
	{"GetAccount", (*Server).GetAccount},
	{"ListAccounts", (*Server).ListAccounts},
	{"UpdateAccount", (*Server).UpdateAccount},
	{"DeleteAccount", (*Server).DeleteAccount},
	{"RestoreAccount", (*Server).RestoreAccount},
	{"ListAccountVersions", (*Server).ListAccountVersions},
	{"RollbackAccount", (*Server).RollbackAccount},
	{"RevealPassword", (*Server).RevealPassword},

	{"CreateWorkspace", (*Server).CreateWorkspace},
	{"GetWorkspace", (*Server).GetWorkspace},
	{"ListWorkspaces", (*Server).ListWorkspaces},
	{"UpdateWorkspace", (*Server).UpdateWorkspace},
	{"DeleteWorkspace", (*Server).DeleteWorkspace},
	{"RestoreWorkspace", (*Server).RestoreWorkspace},

	{"ListMembers", (*Server).ListMembers},
	{"UpdateMembers", (*Server).UpdateMembers},
	{"InviteMembers", (*Server).InviteMembers},
	{"ListInvitations", (*Server).ListInvitations},
	{"ConfirmInvitation", (*Server).ConfirmInvitation},
	{"DeclineInvitation", (*Server).DeclineInvitation},

	{"CreateContactInfo", (*Server).CreateContactInfo},
	{"GetContactInfo", (*Server).GetContactInfo},
	{"ListContactInfos", (*Server).ListContactInfos},
	{"UpdateContactInfo", (*Server).UpdateContactInfo},
	{"DeleteContactInfo", (*Server).DeleteContactInfo},
	{"RestoreContactInfo", (*Server).RestoreContactInfo},

	{"ListNotifications", (*Server).ListNotifications},
	{"MarkNotificationRead", (*Server).MarkNotificationRead},
}

func methodDesc(name string, h handlerFunc) grpc.MethodDesc {
	full := FullMethod(name)
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, ic grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(*Server)
			if ic == nil {
				return h(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			return ic(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return h(s, ctx, req.(*structpb.Struct))
			})
		},
	}
}

// ServiceDesc describes the Vault service for grpc.ServiceRegistrar.
func ServiceDesc() *grpc.ServiceDesc {
	desc := &grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*any)(nil),
		Streams:     []grpc.StreamDesc{},
		Metadata:    "gophshare/v1/vault.proto",
	}
	for _, m := range vaultMethods {
		desc.Methods = append(desc.Methods, methodDesc(m.name, m.h))
	}
	return desc
}

// Register attaches srv to a gRPC server.
func Register(r grpc.ServiceRegistrar, srv *Server) {
	r.RegisterService(ServiceDesc(), srv)
}
