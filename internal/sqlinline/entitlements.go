package sqlinline

// A repeated verified payment re-arms an exhausted entitlement: the counter
// resets to zero and the latest payment reference wins.
const QUpsertEntitlement = `--sql 402df9eb-be6e-4612-a4dc-9f282466eb03
insert into generation_entitlements (identity_key, user_id, email, payment_intent_id, amount_cents, currency, payment_verified, generation_count, generation_limit, created_at, updated_at)
values ($1::text, nullif($2::text, ''), nullif($3::text, ''), $4::text, $5::int, $6::text, true, 0, $7::int, now(), now())
on conflict (identity_key) do update set
    user_id = coalesce(excluded.user_id, generation_entitlements.user_id),
    email = coalesce(excluded.email, generation_entitlements.email),
    payment_intent_id = excluded.payment_intent_id,
    amount_cents = excluded.amount_cents,
    currency = excluded.currency,
    payment_verified = true,
    generation_count = 0,
    generation_limit = excluded.generation_limit,
    updated_at = now();
`

const QSelectEntitlement = `--sql dc85832e-1baa-421a-8a0d-beb9d3dd22f9
select payment_verified, generation_count, generation_limit
from generation_entitlements
where identity_key = $1::text;
`

// The predicate makes the consume atomic: two concurrent requests race on the
// row update and only one can move the counter past the limit boundary.
const QConsumeGeneration = `--sql 7b38ece9-1f95-44f2-bb79-b86d151159bd
update generation_entitlements
set generation_count = generation_count + 1,
    updated_at = now()
where identity_key = $1::text
  and payment_verified
  and generation_count < generation_limit;
`

const QSelectEntitlementUsage = `--sql 4f602eba-01bc-41b5-a813-fe1f97ce7d57
select identity_key, coalesce(user_id, ''), coalesce(email, ''), payment_intent_id, generation_count, generation_limit, updated_at
from generation_entitlements
where identity_key = $1::text;
`
