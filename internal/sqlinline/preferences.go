package sqlinline

const QUpsertFilterSet = `--sql d159f740-8778-47e0-8f19-892caefe4c1d
insert into filter_sets (id, user_id, name, styles, body_parts, color_preference, size_preference, created_at, updated_at)
values (gen_random_uuid(), $1::text, $2::text, $3::text[], $4::text[], $5::text, $6::text, now(), now())
on conflict (user_id, name) do update set
    styles = excluded.styles,
    body_parts = excluded.body_parts,
    color_preference = excluded.color_preference,
    size_preference = excluded.size_preference,
    updated_at = now()
returning id;
`

const QSelectFilterSetsByUser = `--sql c602a861-73fe-4c22-8af8-0c84f95a041f
select id, name, styles, body_parts, color_preference, size_preference, updated_at
from filter_sets
where user_id = $1::text
order by updated_at desc;
`

const QDeleteFilterSet = `--sql 6767160f-fdc6-48b9-86c9-fc6e56cf1c32
delete from filter_sets
where id = $1::uuid and user_id = $2::text;
`
