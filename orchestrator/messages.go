package orchestrator

import "fmt"

// Lang selects the language of inline messages.
type Lang string

const (
	Japanese Lang = "ja"
	English  Lang = "en"

	DefaultLang = Japanese
)

const (
	msgSelectOrganization = "select_organization"
	msgEnterTitle         = "enter_title"
	msgCreateTaskFailed   = "create_task_failed"
	msgCreateTaskError    = "create_task_error"
	msgDraftsFailed       = "drafts_failed"
	msgNoDrafts           = "no_drafts"
	msgTaskMissing        = "task_missing"
	msgUpdateTaskFailed   = "update_task_failed"
	msgUpdateTaskError    = "update_task_error"
	msgDeleteTaskFailed   = "delete_task_failed"
	msgDeleteTaskError    = "delete_task_error"
	msgDeleteConfirm      = "delete_confirm"
	msgNotCreator         = "not_creator"
	msgSelectUsers        = "select_users"
	msgAssignFailed       = "assign_failed"
	msgAssignError        = "assign_error"
	msgFetchMembersFailed = "fetch_members_failed"
	msgUnassignFailed     = "unassign_failed"
	msgUnassignError      = "unassign_error"
	msgEnterOrgName       = "enter_org_name"
	msgCreateOrgFailed    = "create_org_failed"
	msgCreateOrgError     = "create_org_error"
	msgFetchOrgsFailed    = "fetch_orgs_failed"
	msgEnterInviteCode    = "enter_invite_code"
	msgJoinFailed         = "join_failed"
	msgJoinError          = "join_error"
	msgFetchOrgFailed     = "fetch_org_failed"
	msgRegenerateFailed   = "regenerate_failed"
	msgRegenerateError    = "regenerate_error"
	msgNotOwner           = "not_owner"
	msgEnterCredentials   = "enter_credentials"
	msgLoginFailed        = "login_failed"
	msgLoginError         = "login_error"
	msgPasswordMismatch   = "password_mismatch"
	msgPasswordTooShort   = "password_too_short"
	msgSignupFailed       = "signup_failed"
	msgSignupError        = "signup_error"
	msgInvalidDueDate     = "invalid_due_date"
	msgGenerateFailed     = "generate_failed"
	msgGenerateError      = "generate_error"
	msgInvalidField       = "invalid_field"
)

var messages = map[Lang]map[string]string{
	Japanese: {
		msgSelectOrganization: "組織を選択してください。",
		msgEnterTitle:         "タイトルを入力してください。",
		msgCreateTaskFailed:   "タスクの作成に失敗しました。",
		msgCreateTaskError:    "タスクの作成中にエラーが発生しました。",
		msgDraftsFailed:       "%d個のタスクの作成に失敗しました。",
		msgNoDrafts:           "作成するタスクがありません。",
		msgTaskMissing:        "タスクIDが見つかりません。",
		msgUpdateTaskFailed:   "タスクの更新に失敗しました。",
		msgUpdateTaskError:    "タスクの更新中にエラーが発生しました。",
		msgDeleteTaskFailed:   "タスクの削除に失敗しました。",
		msgDeleteTaskError:    "タスクの削除中にエラーが発生しました。",
		msgDeleteConfirm:      "タスクを削除しますか？",
		msgNotCreator:         "タスクを削除できるのは作成者のみです。",
		msgSelectUsers:        "ユーザーを選択してください。",
		msgAssignFailed:       "ユーザーの割り当てに失敗しました。",
		msgAssignError:        "ユーザーの割り当て中にエラーが発生しました。",
		msgFetchMembersFailed: "メンバー情報の取得に失敗しました。",
		msgUnassignFailed:     "ユーザーの割り当て解除に失敗しました。",
		msgUnassignError:      "ユーザーの割り当て解除中にエラーが発生しました。",
		msgEnterOrgName:       "組織名を入力してください。",
		msgCreateOrgFailed:    "組織の作成に失敗しました。",
		msgCreateOrgError:     "組織の作成中にエラーが発生しました。",
		msgFetchOrgsFailed:    "組織一覧の取得に失敗しました。",
		msgEnterInviteCode:    "招待コードを入力してください。",
		msgJoinFailed:         "組織への参加に失敗しました。招待コードを確認してください。",
		msgJoinError:          "組織への参加中にエラーが発生しました。",
		msgFetchOrgFailed:     "組織情報の取得に失敗しました。",
		msgRegenerateFailed:   "招待コードの更新に失敗しました。",
		msgRegenerateError:    "招待コードの更新中にエラーが発生しました。",
		msgNotOwner:           "招待コードを更新できるのはオーナーのみです。",
		msgEnterCredentials:   "ユーザー名とパスワードを入力してください。",
		msgLoginFailed:        "ログインに失敗しました。ユーザー名とパスワードを確認してください。",
		msgLoginError:         "ログイン中にエラーが発生しました。",
		msgPasswordMismatch:   "パスワードが一致しません。",
		msgPasswordTooShort:   "パスワードは6文字以上である必要があります。",
		msgSignupFailed:       "アカウントの作成に失敗しました。ユーザー名が既に使用されている可能性があります。",
		msgSignupError:        "アカウント作成中にエラーが発生しました。",
		msgInvalidDueDate:     "期限の形式が正しくありません。",
		msgGenerateFailed:     "タスクの生成に失敗しました。",
		msgGenerateError:      "タスクの生成中にエラーが発生しました。",
		msgInvalidField:       "項目 '%s' が正しくありません。",
	},
	English: {
		msgSelectOrganization: "Please select an organization.",
		msgEnterTitle:         "Please enter a title.",
		msgCreateTaskFailed:   "Failed to create the task.",
		msgCreateTaskError:    "An error occurred while creating the task.",
		msgDraftsFailed:       "Failed to create %d task(s).",
		msgNoDrafts:           "There are no tasks to create.",
		msgTaskMissing:        "Task ID not found.",
		msgUpdateTaskFailed:   "Failed to update the task.",
		msgUpdateTaskError:    "An error occurred while updating the task.",
		msgDeleteTaskFailed:   "Failed to delete the task.",
		msgDeleteTaskError:    "An error occurred while deleting the task.",
		msgDeleteConfirm:      "Delete this task?",
		msgNotCreator:         "Only the creator can delete this task.",
		msgSelectUsers:        "Please select at least one user.",
		msgAssignFailed:       "Failed to assign users.",
		msgAssignError:        "An error occurred while assigning users.",
		msgFetchMembersFailed: "Failed to load members.",
		msgUnassignFailed:     "Failed to unassign the user.",
		msgUnassignError:      "An error occurred while unassigning the user.",
		msgEnterOrgName:       "Please enter an organization name.",
		msgCreateOrgFailed:    "Failed to create the organization.",
		msgCreateOrgError:     "An error occurred while creating the organization.",
		msgFetchOrgsFailed:    "Failed to load organizations.",
		msgEnterInviteCode:    "Please enter an invite code.",
		msgJoinFailed:         "Failed to join the organization. Check the invite code.",
		msgJoinError:          "An error occurred while joining the organization.",
		msgFetchOrgFailed:     "Failed to load the organization.",
		msgRegenerateFailed:   "Failed to regenerate the invite code.",
		msgRegenerateError:    "An error occurred while regenerating the invite code.",
		msgNotOwner:           "Only owners can regenerate the invite code.",
		msgEnterCredentials:   "Please enter a username and password.",
		msgLoginFailed:        "Login failed. Check your username and password.",
		msgLoginError:         "An error occurred while logging in.",
		msgPasswordMismatch:   "Passwords do not match.",
		msgPasswordTooShort:   "Password must be at least 6 characters.",
		msgSignupFailed:       "Failed to create the account. The username may already be taken.",
		msgSignupError:        "An error occurred while creating the account.",
		msgInvalidDueDate:     "The due date is not valid.",
		msgGenerateFailed:     "Failed to generate tasks.",
		msgGenerateError:      "An error occurred while generating tasks.",
		msgInvalidField:       "The field '%s' is invalid.",
	},
}

// Message keys used outside the dialogs.
const (
	KeyGenerateFailed = msgGenerateFailed
	KeyGenerateError  = msgGenerateError
)

// ParseLang maps a config value to a supported language, falling back to
// DefaultLang.
func ParseLang(s string) Lang {
	if _, ok := messages[Lang(s)]; ok {
		return Lang(s)
	}
	return DefaultLang
}

// Message returns the text for key in lang, formatted with args.
func Message(lang Lang, key string, args ...any) string {
	msgs, ok := messages[lang]
	if !ok {
		msgs = messages[DefaultLang]
	}
	msg, ok := msgs[key]
	if !ok {
		msg = messages[DefaultLang][key]
	}
	if len(args) > 0 {
		return fmt.Sprintf(msg, args...)
	}
	return msg
}
